package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/domini04/bluestar/runtime/workflow"
)

// StageMiddleware opens a span named "stage.<node>" around every stage. The
// span is marked as failed when the stage returns an error or records a new
// diagnostic; a suspension is recorded as an event.
func StageMiddleware(tracer trace.Tracer) workflow.Middleware {
	if tracer == nil {
		tracer = Tracer(nil)
	}
	return func(ctx context.Context, node string, s *workflow.State, next func(context.Context) error) error {
		ctx, span := tracer.Start(ctx, "stage."+node, trace.WithAttributes(
			attribute.String("bluestar.run_id", s.RunID),
			attribute.String("bluestar.repo", s.Repo),
			attribute.String("bluestar.commit", workflow.ShortSHA(s.Commit)),
			attribute.Int("bluestar.iteration", s.Iteration),
		))
		defer span.End()

		before := len(s.Errors)
		err := next(ctx)
		switch {
		case errors.Is(err, workflow.ErrAwaitingInput):
			span.AddEvent("awaiting_input")
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case len(s.Errors) > before:
			span.SetStatus(codes.Error, s.Errors[len(s.Errors)-1])
		}
		return err
	}
}
