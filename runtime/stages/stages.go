// Package stages implements the nodes of the commit-to-post workflow.
//
// Every stage records the failures of its own work as diagnostics on the
// workflow state and returns nil, so a run keeps advancing and later stages
// report their own missing preconditions. Only the review and decide stages
// suspend, by returning workflow.ErrAwaitingInput when no input is at hand.
package stages

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/runtime/classify"
	"github.com/domini04/bluestar/runtime/extraction"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/publish"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const component = "stages"

// ErrNoInput is returned by a Reviewer or Chooser that has nobody to ask.
// The stage suspends the run instead of recording a failure.
var ErrNoInput = errors.New("no interactive input available")

// ChangeFetcher retrieves a commit and its project context.
type ChangeFetcher interface {
	FetchChange(ctx context.Context, repo, sha string) (*types.ChangeRecord, error)
}

// Verdict is a reviewer's answer for one pass.
type Verdict struct {
	Satisfied bool
	Feedback  string
}

// Reviewer presents a draft and collects a verdict.
type Reviewer interface {
	Review(ctx context.Context, doc *types.Document, iteration, maxIterations int) (Verdict, error)
}

// Chooser asks where to publish. rejected holds the previous answer when it
// was not a recognized choice.
type Chooser interface {
	Choose(ctx context.Context, doc *types.Document, rejected string) (string, error)
}

// PublishObserver is notified after every sink attempt.
type PublishObserver interface {
	ObservePublish(ctx context.Context, sink string, duration time.Duration, err error)
}

// Config holds per-stage generation parameters and timeouts.
type Config struct {
	Analysis       extraction.Params
	Synthesis      extraction.Params
	Refinement     extraction.Params
	FetchTimeout   time.Duration
	PublishTimeout time.Duration
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() Config {
	return Config{
		Analysis:       extraction.Params{Temperature: 0.3, MaxTokens: 4096, Timeout: 60 * time.Second},
		Synthesis:      extraction.Params{Temperature: 0.7, MaxTokens: 8192, Timeout: 120 * time.Second},
		Refinement:     extraction.Params{Temperature: 0.2, MaxTokens: 8192, Timeout: 120 * time.Second},
		FetchTimeout:   90 * time.Second,
		PublishTimeout: 60 * time.Second,
	}
}

// Deps are the collaborators the stages are built from. Reviewer and
// Chooser are optional; without them the run suspends at review and decide.
// A sink missing from Sinks produces a configuration diagnostic when chosen.
type Deps struct {
	Fetcher   ChangeFetcher
	Extractor *extraction.Adapter
	Reviewer  Reviewer
	Chooser   Chooser
	Sinks     map[types.PublishChoice]publish.Sink
	Observers []PublishObserver
	Config    Config
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Build returns the stage for every non-terminal node of the default graph.
func Build(d Deps) map[string]workflow.Stage {
	b := base{log: logger.OrDefault(d.Logger), now: d.Clock}
	if b.now == nil {
		b.now = time.Now
	}
	cfg := d.Config
	return map[string]workflow.Stage{
		workflow.NodeValidate:      &ValidateStage{base: b.named(workflow.NodeValidate)},
		workflow.NodeFetch:         NewFetchStage(b.named(workflow.NodeFetch), d.Fetcher, cfg.FetchTimeout),
		workflow.NodeAnalyze:       NewAnalyzeStage(b.named(workflow.NodeAnalyze), d.Extractor, cfg.Analysis),
		workflow.NodeSynthesize:    NewSynthesizeStage(b.named(workflow.NodeSynthesize), d.Extractor, cfg.Synthesis, cfg.Refinement),
		workflow.NodeReview:        &ReviewStage{base: b.named(workflow.NodeReview), reviewer: d.Reviewer},
		workflow.NodeDecide:        &DecideStage{base: b.named(workflow.NodeDecide), chooser: d.Chooser},
		workflow.NodePublishGhost:  newSinkStage(b.named(workflow.NodePublishGhost), destGhost, d.Sinks[types.PublishGhost], cfg.PublishTimeout, d.Observers),
		workflow.NodePublishNotion: newSinkStage(b.named(workflow.NodePublishNotion), destNotion, d.Sinks[types.PublishNotion], cfg.PublishTimeout, d.Observers),
		workflow.NodeSaveLocal:     newSinkStage(b.named(workflow.NodeSaveLocal), destLocal, d.Sinks[types.PublishLocal], cfg.PublishTimeout, d.Observers),
	}
}

// base carries what every stage shares.
type base struct {
	name string
	log  *slog.Logger
	now  func() time.Time
}

func (b base) named(name string) base {
	b.name = name
	return b
}

// Name returns the node the stage implements.
func (b base) Name() string { return b.name }

func (b base) complete(s *workflow.State) {
	s.MarkComplete(b.name, b.now().UTC())
}

// fail records err as a classified diagnostic.
func (b base) fail(ctx context.Context, s *workflow.State, op string, err error) {
	msg := classify.Message(err, classify.Context{Repo: s.Repo, Commit: s.Commit, Operation: op})
	b.log.WarnContext(ctx, "stage failed", "category", classify.Categorize(err), "error", err)
	s.AddDiagnostic(msg)
}

func precondition(op, format string, args ...any) error {
	return pkgerrors.Newf(component, op, format, args...).WithKind(pkgerrors.KindPrecondition)
}

// noInput reports whether an interactive collaborator had nobody to ask.
func noInput(err error) bool {
	return errors.Is(err, ErrNoInput) || errors.Is(err, io.EOF)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func invalidInput(op string, err error) error {
	return pkgerrors.New(component, op, err).WithKind(pkgerrors.KindInvalidInput)
}

func configuration(op, format string, args ...any) error {
	return pkgerrors.Newf(component, op, format, args...).WithKind(pkgerrors.KindConfiguration)
}
