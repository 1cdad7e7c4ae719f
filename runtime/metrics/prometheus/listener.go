package prometheus

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/runtime/extraction"
	"github.com/domini04/bluestar/runtime/workflow"
)

// Status constants for metric labels.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusAwaiting = "awaiting_input"
)

// Recorder turns workflow, extraction and publishing callbacks into metrics.
// It implements extraction.Observer and stages.PublishObserver; Middleware and
// ObserveResult plug into a workflow.Runner.
type Recorder struct {
	now func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Middleware times every stage. A stage that appended a diagnostic is
// counted as an error even though it returned nil.
func (r *Recorder) Middleware() workflow.Middleware {
	return func(ctx context.Context, node string, s *workflow.State, next func(context.Context) error) error {
		before := len(s.Errors)
		start := r.now()
		err := next(ctx)

		status := statusSuccess
		switch {
		case errors.Is(err, workflow.ErrAwaitingInput):
			status = statusAwaiting
		case err != nil, len(s.Errors) > before:
			status = statusError
		}
		RecordStage(node, status, r.now().Sub(start).Seconds())
		return err
	}
}

// ObserveResult records a finished run segment. Register it with
// workflow.WithObserver.
func (r *Recorder) ObserveResult(_ context.Context, res *workflow.Result) {
	var elapsed float64
	if res.State != nil && !res.State.StartedAt.IsZero() {
		elapsed = r.now().Sub(res.State.StartedAt).Seconds()
	}
	RecordRun(string(res.Status), elapsed)
	if res.Status == workflow.StatusAwaitingInput {
		return
	}
	RecordDiagnostics(len(res.Diagnostics))
	if res.State != nil {
		RecordIterations(res.State.Iteration)
	}
}

// ObserveExtraction records one generator call.
func (r *Recorder) ObserveExtraction(_ context.Context, ev extraction.Event) {
	RecordProviderRequest(ev.Provider, ev.Model, ev.Task, outcome(ev.Err), ev.Duration.Seconds())
	if ev.Err == nil {
		RecordProviderTokens(ev.Provider, ev.Model, ev.InputTokens, ev.OutputTokens)
	}
}

// ObservePublish records one sink call.
func (r *Recorder) ObservePublish(_ context.Context, sink string, duration time.Duration, err error) {
	RecordPublish(sink, outcome(err), duration.Seconds())
}

// outcome labels an error by its kind so dashboards can split rate limits
// from schema failures.
func outcome(err error) string {
	if err == nil {
		return statusSuccess
	}
	if kind := pkgerrors.KindOf(err); kind != pkgerrors.KindUnknown {
		return string(kind)
	}
	return statusError
}
