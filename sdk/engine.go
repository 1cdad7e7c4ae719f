package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/domini04/bluestar/pkg/config"
	"github.com/domini04/bluestar/runtime/extraction"
	"github.com/domini04/bluestar/runtime/github"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/metrics/prometheus"
	"github.com/domini04/bluestar/runtime/prompt"
	"github.com/domini04/bluestar/runtime/providers"
	_ "github.com/domini04/bluestar/runtime/providers/all" // register the built-in providers
	"github.com/domini04/bluestar/runtime/publish"
	"github.com/domini04/bluestar/runtime/stages"
	"github.com/domini04/bluestar/runtime/statestore"
	"github.com/domini04/bluestar/runtime/telemetry"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

// Request starts one run.
type Request struct {
	// Repo is "owner/repo" or a GitHub URL; Commit is a full 40-character SHA.
	// Both are validated by the first stage, which reports problems as
	// diagnostics rather than errors.
	Repo         string
	Commit       string
	Instructions string

	// Publish pre-supplies the publishing choice, overriding workflow.publish.
	// An unrecognized token ends the run without publishing.
	Publish string

	// MaxIterations overrides workflow.maxIterations when positive.
	MaxIterations int
}

// Engine runs the commit-to-post workflow.
type Engine struct {
	cfg       *config.Config
	graph     *workflow.Graph
	runner    *workflow.Runner
	store     statestore.Store
	ownsStore bool
	generator providers.Generator
	log       *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New builds an Engine. Every collaborator not supplied through an Option is
// built from the configuration; without WithConfig the configuration comes
// from the environment alone.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		o.cfg = cfg
	}
	cfg := o.cfg
	log := logger.OrDefault(o.log)
	if o.clock == nil {
		o.clock = time.Now
	}
	tracer := telemetry.Tracer(o.tracerProvider)

	gen := o.generator
	if gen == nil {
		var err error
		gen, err = providers.New(providers.Spec{
			Type:    cfg.LLM.Provider,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Timeout: cfg.LLM.Timeout,
			Logger:  log,
			Options: cfg.LLM.Options,
		})
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
	}

	prompts, err := prompt.NewRegistry()
	if err != nil {
		return nil, err
	}
	if dir := cfg.Workflow.PromptsDir; dir != "" {
		if err := prompts.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
		}
	}

	recorder := prometheus.NewRecorder()
	extractor := extraction.NewAdapter(gen, prompts,
		extraction.WithLogger(log),
		extraction.WithObserver(recorder),
		extraction.WithTracer(tracer),
	)

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = github.New(github.Config{
			Token:             cfg.GitHub.Token,
			BaseURL:           cfg.GitHub.BaseURL,
			MaxRateLimitWait:  cfg.GitHub.MaxRateLimitWait,
			RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
			Logger:            log,
		})
	}

	sinks, err := buildSinks(cfg, log)
	if err != nil {
		return nil, err
	}
	for choice, sink := range o.sinks {
		sinks[choice] = sink
	}

	store, ownsStore := o.store, false
	if store == nil {
		store, err = statestore.Open(ctx, cfg.Store.Backend, cfg.Store.URL)
		if err != nil {
			return nil, fmt.Errorf("open %s checkpoint store: %w", cfg.Store.Backend, err)
		}
		ownsStore = true
	}

	built := stages.Build(stages.Deps{
		Fetcher:   fetcher,
		Extractor: extractor,
		Reviewer:  o.reviewer,
		Chooser:   o.chooser,
		Sinks:     sinks,
		Observers: []stages.PublishObserver{recorder},
		Config:    stageConfig(cfg),
		Logger:    log,
		Clock:     o.clock,
	})
	graph, warnings, err := workflow.NewGraph(workflow.DefaultSpec(), built)
	if err != nil {
		if ownsStore {
			_ = store.Close()
		}
		return nil, err
	}
	for _, w := range warnings {
		log.WarnContext(ctx, "workflow graph warning", "warning", w)
	}

	runner := workflow.NewRunner(graph,
		workflow.WithStore(store),
		workflow.WithLogger(log),
		workflow.WithClock(o.clock),
		workflow.WithMiddleware(telemetry.StageMiddleware(tracer), recorder.Middleware()),
		workflow.WithObserver(recorder.ObserveResult),
	)

	log.DebugContext(ctx, "engine ready",
		"provider", providers.Describe(gen), "store", cfg.Store.Backend, "sinks", len(sinks))
	return &Engine{
		cfg:       cfg,
		graph:     graph,
		runner:    runner,
		store:     store,
		ownsStore: ownsStore,
		generator: gen,
		log:       log,
	}, nil
}

// buildSinks creates the Ghost and Notion sinks when they are configured and
// the local sink always.
func buildSinks(cfg *config.Config, log *slog.Logger) (map[types.PublishChoice]publish.Sink, error) {
	sinks := map[types.PublishChoice]publish.Sink{
		types.PublishLocal: publish.NewLocal(cfg.Output.Dir, log),
	}
	if cfg.Ghost.Enabled() {
		g, err := publish.NewGhost(publish.GhostConfig{
			URL:         cfg.Ghost.URL,
			AdminAPIKey: cfg.Ghost.AdminAPIKey,
			Timeout:     cfg.Workflow.PublishTimeout,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		sinks[types.PublishGhost] = g
	}
	if cfg.Notion.Enabled() {
		n, err := publish.NewNotion(publish.NotionConfig{
			APIKey:       cfg.Notion.APIKey,
			DatabaseID:   cfg.Notion.DatabaseID,
			ParentPageID: cfg.Notion.ParentPageID,
			Timeout:      cfg.Workflow.PublishTimeout,
			Logger:       log,
		})
		if err != nil {
			return nil, err
		}
		sinks[types.PublishNotion] = n
	}
	return sinks, nil
}

// stageConfig overlays the configured generation parameters on the defaults.
func stageConfig(cfg *config.Config) stages.Config {
	sc := stages.DefaultConfig()
	sc.Analysis = overrideParams(sc.Analysis, cfg.Generation.Analysis)
	sc.Synthesis = overrideParams(sc.Synthesis, cfg.Generation.Synthesis)
	sc.Refinement = overrideParams(sc.Refinement, cfg.Generation.Refinement)
	if cfg.Workflow.FetchTimeout > 0 {
		sc.FetchTimeout = cfg.Workflow.FetchTimeout
	}
	if cfg.Workflow.PublishTimeout > 0 {
		sc.PublishTimeout = cfg.Workflow.PublishTimeout
	}
	return sc
}

func overrideParams(p extraction.Params, g config.GenerationParams) extraction.Params {
	if g.Temperature != nil {
		p.Temperature = *g.Temperature
	}
	if g.MaxTokens > 0 {
		p.MaxTokens = g.MaxTokens
	}
	if g.Timeout > 0 {
		p.Timeout = g.Timeout
	}
	return p
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Generator returns the generator the engine calls.
func (e *Engine) Generator() providers.Generator { return e.generator }

// Run starts a new run and drives it until it ends or suspends.
func (e *Engine) Run(ctx context.Context, req Request) (*workflow.Result, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = e.cfg.Workflow.MaxIterations
	}
	s := workflow.NewState(req.Repo, req.Commit, req.Instructions, maxIter)

	publishing := req.Publish
	if publishing == "" {
		publishing = e.cfg.Workflow.Publish
	}
	s.Publishing = types.PublishChoice(strings.TrimSpace(publishing))

	return e.runner.Run(ctx, s)
}

// Resume delivers in to a suspended run.
func (e *Engine) Resume(ctx context.Context, runID string, in workflow.Input) (*workflow.Result, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if err := workflow.ValidateRunID(runID); err != nil {
		return nil, err
	}
	res, err := e.runner.Resume(ctx, runID, in)
	return res, e.notFound(runID, err)
}

// Status returns the stored result of a run.
func (e *Engine) Status(ctx context.Context, runID string) (*workflow.Result, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if err := workflow.ValidateRunID(runID); err != nil {
		return nil, err
	}
	res, err := e.runner.Inspect(ctx, runID)
	return res, e.notFound(runID, err)
}

// List returns stored runs, most recently updated first.
func (e *Engine) List(ctx context.Context, opts statestore.ListOptions) ([]statestore.Summary, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.List(ctx, opts)
}

// Delete removes a stored run.
func (e *Engine) Delete(ctx context.Context, runID string) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.notFound(runID, e.store.Delete(ctx, runID))
}

// Describe lists the workflow's transitions.
func (e *Engine) Describe() []string {
	return e.graph.Describe()
}

// Close releases the checkpoint store if the engine opened it. It is safe
// to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}

func (e *Engine) check() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) notFound(runID string, err error) error {
	if errors.Is(err, statestore.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return err
}
