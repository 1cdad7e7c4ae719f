package stages

import (
	"context"

	"github.com/domini04/bluestar/runtime/extraction"
	"github.com/domini04/bluestar/runtime/prompt"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const opAnalyze = "analyzing the commit"

// AnalyzeStage extracts an Analysis from the change record.
type AnalyzeStage struct {
	base
	extractor *extraction.Adapter
	params    extraction.Params
}

// NewAnalyzeStage creates an AnalyzeStage.
func NewAnalyzeStage(b base, extractor *extraction.Adapter, params extraction.Params) *AnalyzeStage {
	return &AnalyzeStage{base: b, extractor: extractor, params: params}
}

// Run implements workflow.Stage.
func (a *AnalyzeStage) Run(ctx context.Context, s *workflow.State) error {
	defer a.complete(s)

	if s.Change == nil {
		a.fail(ctx, s, opAnalyze, precondition("Analyze", "the commit record was not fetched"))
		return nil
	}
	if a.extractor == nil {
		a.fail(ctx, s, opAnalyze, configuration("Analyze", "no model provider is configured"))
		return nil
	}

	analysis, err := extraction.Extract[types.Analysis](ctx, a.extractor, prompt.TaskAnalysis, AnalysisVars(s), a.params)
	if err != nil {
		a.fail(ctx, s, opAnalyze, err)
		return nil
	}
	s.Analysis = analysis
	s.Feedback = ""
	a.log.InfoContext(ctx, "commit analyzed",
		"change_type", analysis.ChangeType, "context_assessment", analysis.ContextAssessment)
	return nil
}
