package stages

import (
	"context"

	"github.com/domini04/bluestar/runtime/extraction"
	"github.com/domini04/bluestar/runtime/prompt"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const opSynthesize = "drafting the post"

// SynthesizeStage drafts the document, or refines the previous draft when
// the reviewer left feedback.
type SynthesizeStage struct {
	base
	extractor  *extraction.Adapter
	initial    extraction.Params
	refinement extraction.Params
}

// NewSynthesizeStage creates a SynthesizeStage.
func NewSynthesizeStage(b base, extractor *extraction.Adapter, initial, refinement extraction.Params) *SynthesizeStage {
	return &SynthesizeStage{base: b, extractor: extractor, initial: initial, refinement: refinement}
}

// Refining reports whether the next pass refines an existing draft.
func Refining(s *workflow.State) bool {
	return s.Feedback != "" && s.Document != nil
}

// Run implements workflow.Stage. On failure the previous draft, if any, is
// kept and the feedback is left for a later pass.
func (st *SynthesizeStage) Run(ctx context.Context, s *workflow.State) error {
	defer st.complete(s)

	if s.Analysis == nil {
		st.fail(ctx, s, opSynthesize, precondition("Synthesize", "no analysis of the commit is available"))
		return nil
	}
	if st.extractor == nil {
		st.fail(ctx, s, opSynthesize, configuration("Synthesize", "no model provider is configured"))
		return nil
	}

	task, params, vars := prompt.TaskSynthesisInitial, st.initial, InitialVars(s)
	if Refining(s) {
		rv, err := RefinementVars(s)
		if err != nil {
			st.fail(ctx, s, "refining the post", err)
			return nil
		}
		task, params, vars = prompt.TaskSynthesisRefinement, st.refinement, rv
	}

	doc, err := extraction.Extract[types.Document](ctx, st.extractor, task, vars, params)
	if err != nil {
		st.fail(ctx, s, opSynthesize, err)
		return nil
	}
	s.Document = doc
	s.Feedback = ""
	st.log.InfoContext(ctx, "draft ready", "task", task, "title", doc.Title, "blocks", len(doc.Body))
	return nil
}
