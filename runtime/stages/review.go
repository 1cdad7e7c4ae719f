package stages

import (
	"context"
	"strings"

	"github.com/domini04/bluestar/runtime/workflow"
)

const opReview = "reviewing the draft"

// ReviewStage is the human checkpoint. Each completed pass sets the
// satisfaction flag and increments the iteration counter exactly once; a
// pass that suspends changes neither.
type ReviewStage struct {
	base
	reviewer Reviewer
}

// Run implements workflow.Stage.
func (r *ReviewStage) Run(ctx context.Context, s *workflow.State) error {
	in := s.TakeInput(workflow.NodeReview)

	if s.Document == nil {
		r.fail(ctx, s, opReview, precondition("Review", "no draft was produced"))
		r.finishPass(s, nil)
		return nil
	}

	if in != nil {
		r.finishPass(s, &Verdict{Satisfied: *in.Satisfied, Feedback: in.Feedback})
		return nil
	}
	if r.reviewer == nil {
		return workflow.ErrAwaitingInput
	}

	for {
		v, err := r.reviewer.Review(ctx, s.Document, s.Iteration, s.MaxIterations)
		switch {
		case noInput(err):
			return workflow.ErrAwaitingInput
		case err != nil:
			r.fail(ctx, s, opReview, err)
			r.finishPass(s, nil)
			return nil
		case !v.Satisfied && strings.TrimSpace(v.Feedback) == "":
			if err := ctx.Err(); err != nil {
				r.fail(ctx, s, opReview, err)
				r.finishPass(s, nil)
				return nil
			}
			r.log.InfoContext(ctx, "feedback is required when not satisfied, asking again")
			continue
		}
		r.finishPass(s, &v)
		return nil
	}
}

// finishPass records the verdict (nil leaves satisfaction unset) and counts
// the pass.
func (r *ReviewStage) finishPass(s *workflow.State, v *Verdict) {
	if v == nil {
		s.Satisfied = nil
	} else {
		s.SetSatisfied(v.Satisfied, strings.TrimSpace(v.Feedback))
	}
	s.Iteration++
	r.complete(s)
}
