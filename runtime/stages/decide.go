package stages

import (
	"context"

	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const opDecide = "choosing where to publish"

// DecideStage records the publishing choice. A choice already present on
// the state is used as-is without prompting, even when it is not one of the
// recognized tokens; the publishing edge then ends the run.
type DecideStage struct {
	base
	chooser Chooser
}

// Run implements workflow.Stage.
func (d *DecideStage) Run(ctx context.Context, s *workflow.State) error {
	if s.Publishing != types.PublishNone {
		if c, err := types.ParsePublishChoice(string(s.Publishing)); err == nil {
			s.Publishing = c
		} else {
			d.log.WarnContext(ctx, "pre-supplied publishing choice is not recognized, ending without publishing",
				"choice", s.Publishing)
		}
		d.complete(s)
		return nil
	}

	in := s.TakeInput(workflow.NodeDecide)
	if s.Document == nil {
		d.fail(ctx, s, opDecide, precondition("Decide", "there is no draft to publish"))
		d.complete(s)
		return nil
	}
	if in != nil {
		s.Publishing = in.Choice
		d.complete(s)
		return nil
	}
	if d.chooser == nil {
		return workflow.ErrAwaitingInput
	}

	rejected := ""
	for {
		answer, err := d.chooser.Choose(ctx, s.Document, rejected)
		if noInput(err) {
			return workflow.ErrAwaitingInput
		}
		if err != nil {
			d.fail(ctx, s, opDecide, err)
			d.complete(s)
			return nil
		}
		choice, perr := types.ParsePublishChoice(answer)
		if perr != nil {
			if err := ctx.Err(); err != nil {
				d.fail(ctx, s, opDecide, err)
				d.complete(s)
				return nil
			}
			rejected = answer
			continue
		}
		s.Publishing = choice
		d.log.InfoContext(ctx, "publishing choice recorded", "choice", choice)
		d.complete(s)
		return nil
	}
}
