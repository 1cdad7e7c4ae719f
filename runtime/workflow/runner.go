package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/domini04/bluestar/runtime/logger"
)

// ErrNoStore is returned by Resume and Inspect when the runner has no checkpoint store.
var ErrNoStore = errors.New("no checkpoint store configured")

// Status is the outcome of a run or of its latest segment.
type Status string

// Run statuses.
const (
	StatusCompleted     Status = "completed"
	StatusHalted        Status = "halted"
	StatusAwaitingInput Status = "awaiting_input"
)

// Checkpoint is the durable snapshot of a run.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	Awaiting  string    `json:"awaiting,omitempty"`
	State     *State    `json:"state"`
	Machine   *Context  `json:"machine"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result converts the checkpoint into what a host displays.
func (cp *Checkpoint) Result() *Result {
	return &Result{
		RunID:       cp.RunID,
		Status:      cp.Status,
		Awaiting:    cp.Awaiting,
		State:       cp.State,
		Diagnostics: cp.State.Diagnostics(),
	}
}

// CheckpointStore persists checkpoints keyed by run ID.
type CheckpointStore interface {
	Load(ctx context.Context, runID string) (*Checkpoint, error)
	Save(ctx context.Context, cp *Checkpoint) error
}

// Result is returned to the host at the end of a run or when it suspends.
type Result struct {
	RunID    string
	Status   Status
	Awaiting string
	State    *State
	// Diagnostics are the accumulated messages in the order they occurred.
	Diagnostics []string
	// Replayed is true when Resume returned the stored result without
	// applying the input.
	Replayed bool
}

// Runner drives a Graph one stage at a time.
type Runner struct {
	graph      *Graph
	store      CheckpointStore
	log        *slog.Logger
	middleware []Middleware
	observers  []func(context.Context, *Result)
	now        TimeFunc
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore sets the checkpoint store used to suspend and resume runs.
func WithStore(store CheckpointStore) RunnerOption {
	return func(r *Runner) { r.store = store }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithMiddleware appends stage middleware. The first one registered is the outermost.
func WithMiddleware(mw ...Middleware) RunnerOption {
	return func(r *Runner) { r.middleware = append(r.middleware, mw...) }
}

// WithObserver registers a function called with every result the runner returns.
func WithObserver(fn func(context.Context, *Result)) RunnerOption {
	return func(r *Runner) { r.observers = append(r.observers, fn) }
}

// WithClock sets the time source for transitions and checkpoints.
func WithClock(fn TimeFunc) RunnerOption {
	return func(r *Runner) { r.now = fn }
}

// NewRunner creates a Runner for graph.
func NewRunner(graph *Graph, opts ...RunnerOption) *Runner {
	r := &Runner{graph: graph, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrDefault(r.log)
	return r
}

// Run executes s from the graph's entry node until the run ends or a stage
// suspends. The error return is reserved for broken invariants and
// checkpoint failures; stage failures are in Result.Diagnostics.
func (r *Runner) Run(ctx context.Context, s *State) (*Result, error) {
	if s == nil {
		return nil, errors.New("workflow: nil state")
	}
	if s.MaxIterations < 1 {
		return nil, fmt.Errorf("workflow: max iterations must be at least 1, got %d", s.MaxIterations)
	}
	if s.RunID == "" {
		s.RunID = NewRunID()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = r.now().UTC()
	}
	if s.Completed == nil {
		s.Completed = map[string]time.Time{}
	}
	if s.Errors == nil {
		s.Errors = []string{}
	}

	sm := NewStateMachine(r.graph.spec).WithTimeFunc(r.now)
	sm.context = NewContext(r.graph.spec.Entry, r.now())
	return r.advance(ctx, s, sm)
}

// Resume delivers in to a suspended run. The input is applied only when the
// run is awaiting in.Stage at in.Iteration; any other delivery returns the
// stored result unchanged with Replayed set.
func (r *Runner) Resume(ctx context.Context, runID string, in Input) (*Result, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	cp, err := r.store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	if cp.State == nil || cp.Machine == nil {
		return nil, fmt.Errorf("checkpoint %s is incomplete", runID)
	}

	ctx = r.runContext(ctx, cp.State)
	if cp.Status != StatusAwaitingInput || cp.Awaiting != in.Stage || cp.State.Iteration != in.Iteration {
		r.log.InfoContext(ctx, "input does not answer the suspended stage, returning stored result",
			"status", cp.Status, "awaiting", cp.Awaiting, "iteration", cp.State.Iteration,
			"input_stage", in.Stage, "input_iteration", in.Iteration)
		res := cp.Result()
		res.Replayed = true
		return res, nil
	}

	sm := NewStateMachineFromContext(r.graph.spec, cp.Machine).WithTimeFunc(r.now)
	if sm.Current() != cp.Awaiting {
		return nil, fmt.Errorf("checkpoint %s: machine at %q but awaiting %q", runID, sm.Current(), cp.Awaiting)
	}

	s := cp.State
	s.Inbox = &in
	r.log.InfoContext(ctx, "resuming run", "stage", in.Stage, "iteration", in.Iteration)
	return r.advance(ctx, s, sm)
}

// Inspect returns the stored result of a run without changing it.
func (r *Runner) Inspect(ctx context.Context, runID string) (*Result, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	cp, err := r.store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	if cp.State == nil {
		return nil, fmt.Errorf("checkpoint %s is incomplete", runID)
	}
	return cp.Result(), nil
}

func (r *Runner) advance(ctx context.Context, s *State, sm *StateMachine) (*Result, error) {
	ctx = r.runContext(ctx, s)
	// The refinement loop is the only cycle, so a run visits at most every
	// node once per allowed iteration.
	limit := len(r.graph.spec.Nodes) * (s.MaxIterations + 2)

	for step := 0; ; step++ {
		if step > limit {
			return nil, fmt.Errorf("workflow: run %s exceeded %d steps", s.RunID, limit)
		}

		node := sm.Current()
		if sm.IsTerminal() {
			s.CurrentStage = node
			s.Done = true
			status := StatusCompleted
			if last := sm.context.LastTransition(); last != nil && last.Event == EventHalt {
				status = StatusHalted
			}
			return r.finish(ctx, s, sm, status, "")
		}

		stage, ok := r.graph.Stage(node)
		if !ok {
			return nil, fmt.Errorf("%w: node %q has no stage", ErrInvalidGraph, node)
		}

		s.CurrentStage = node
		err := r.runStage(ctx, node, stage, s)
		if errors.Is(err, ErrAwaitingInput) {
			return r.finish(ctx, s, sm, StatusAwaitingInput, node)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", node, err)
		}

		target, err := r.graph.Next(node, s)
		if err != nil {
			return nil, err
		}
		if err := sm.MoveTo(target); err != nil {
			return nil, err
		}
		if node == NodeReview && s.Iteration > s.MaxIterations {
			return nil, fmt.Errorf("workflow: iteration %d exceeds maximum %d", s.Iteration, s.MaxIterations)
		}
	}
}

func (r *Runner) runStage(ctx context.Context, node string, stage Stage, s *State) error {
	ctx = logger.WithStage(ctx, node)

	call := func(ctx context.Context) error { return stage.Run(ctx, s) }
	for i := len(r.middleware) - 1; i >= 0; i-- {
		mw, next := r.middleware[i], call
		call = func(ctx context.Context) error { return mw(ctx, node, s, next) }
	}

	start := r.now()
	r.log.DebugContext(ctx, "stage started", "iteration", s.Iteration)
	errCount := len(s.Errors)
	err := call(ctx)

	attrs := []any{"duration", r.now().Sub(start), "iteration", s.Iteration}
	switch {
	case errors.Is(err, ErrAwaitingInput):
		r.log.InfoContext(ctx, "stage awaiting input", attrs...)
	case err != nil:
		r.log.ErrorContext(ctx, "stage aborted run", append(attrs, "error", err)...)
	case len(s.Errors) > errCount:
		r.log.WarnContext(ctx, "stage recorded diagnostics", append(attrs, "diagnostics", len(s.Errors)-errCount)...)
	default:
		r.log.DebugContext(ctx, "stage completed", attrs...)
	}
	return err
}

func (r *Runner) finish(ctx context.Context, s *State, sm *StateMachine, status Status, awaiting string) (*Result, error) {
	cp := &Checkpoint{
		RunID:     s.RunID,
		Status:    status,
		Awaiting:  awaiting,
		State:     s,
		Machine:   sm.Context(),
		UpdatedAt: r.now().UTC(),
	}
	if r.store != nil {
		if err := r.store.Save(ctx, cp); err != nil {
			return nil, fmt.Errorf("save checkpoint %s: %w", s.RunID, err)
		}
	}

	res := cp.Result()
	r.log.InfoContext(ctx, "run segment finished",
		"status", status, "awaiting", awaiting, "iteration", s.Iteration, "diagnostics", len(res.Diagnostics))
	for _, fn := range r.observers {
		fn(ctx, res)
	}
	return res, nil
}

func (r *Runner) runContext(ctx context.Context, s *State) context.Context {
	return logger.WithLoggingContext(ctx, &logger.LoggingFields{
		RunID:  s.RunID,
		Repo:   s.Repo,
		Commit: ShortSHA(s.Commit),
	})
}
