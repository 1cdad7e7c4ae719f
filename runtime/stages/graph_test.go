package stages

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domini04/bluestar/pkg/testutil"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/providers/mock"
	"github.com/domini04/bluestar/runtime/publish"
	"github.com/domini04/bluestar/runtime/statestore"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

func newRunner(t *testing.T, d Deps, opts ...workflow.RunnerOption) *workflow.Runner {
	t.Helper()
	d.Logger = logger.Discard()
	d.Clock = testutil.FixedClock(fixedNow)
	if d.Config == (Config{}) {
		d.Config = DefaultConfig()
	}
	g, _, err := workflow.NewGraph(workflow.DefaultSpec(), Build(d))
	require.NoError(t, err)
	return workflow.NewRunner(g, append([]workflow.RunnerOption{workflow.WithLogger(logger.Discard())}, opts...)...)
}

func TestBuild_BindsEveryNode(t *testing.T) {
	built := Build(Deps{})
	for name := range workflow.DefaultSpec().Nodes {
		if name == workflow.NodeEnd {
			continue
		}
		assert.Contains(t, built, name)
	}
}

func TestGraph_InteractiveRunToLocalDraft(t *testing.T) {
	gen := mock.NewProvider()
	dir := t.TempDir()
	reviewer := &scriptedReviewer{verdicts: []Verdict{
		{Satisfied: false, Feedback: "Mention the benchmark"},
		{Satisfied: true},
	}}
	r := newRunner(t, Deps{
		Fetcher:   &fakeFetcher{change: testChange()},
		Extractor: newExtractor(t, gen),
		Reviewer:  reviewer,
		Chooser:   &scriptedChooser{answers: []string{"local"}},
		Sinks:     map[types.PublishChoice]publish.Sink{types.PublishLocal: publish.NewLocal(dir, logger.Discard())},
	})

	res, err := r.Run(context.Background(), workflow.NewState("octo/widgets", testSHA, "", 3))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, res.Status)
	assert.Empty(t, res.Diagnostics)

	s := res.State
	assert.Equal(t, 2, s.Iteration)
	assert.Empty(t, s.Feedback)
	assert.Equal(t, types.PublishLocal, s.Publishing)
	require.NotEmpty(t, s.PublishedLocation)
	_, statErr := os.Stat(s.PublishedLocation)
	assert.NoError(t, statErr)
	assert.Equal(t, 1, gen.Calls("analysis"))
	assert.Equal(t, 2, gen.Calls("document"), "one draft and one refinement")
}

func TestGraph_FetchFailureHalts(t *testing.T) {
	r := newRunner(t, Deps{Fetcher: &fakeFetcher{err: context.DeadlineExceeded}})

	res, err := r.Run(context.Background(), workflow.NewState("octo/widgets", testSHA, "", 3))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusHalted, res.Status)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "timed out")
}

func TestGraph_InvalidInputHalts(t *testing.T) {
	f := &fakeFetcher{change: testChange()}
	r := newRunner(t, Deps{Fetcher: f})

	res, err := r.Run(context.Background(), workflow.NewState("octo", "abc", "", 3))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusHalted, res.Status)
	assert.Len(t, res.Diagnostics, 3, "two validation failures and the fetch precondition")
	assert.Zero(t, f.calls)
}

func TestGraph_AnalysisFailureChainsDiagnostics(t *testing.T) {
	gen := mock.NewProvider(mock.Turn{Content: "not json"})
	r := newRunner(t, Deps{
		Fetcher:   &fakeFetcher{change: testChange()},
		Extractor: newExtractor(t, gen),
		Chooser:   panicChooser{},
	})

	res, err := r.Run(context.Background(), workflow.NewState("octo/widgets", testSHA, "", 3))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, res.Status)
	// analyze, synthesize, review and decide each report their own failure.
	require.Len(t, res.Diagnostics, 4)
	assert.Contains(t, res.Diagnostics[0], "expected format")
	assert.Contains(t, res.Diagnostics[1], "no analysis")
	assert.Contains(t, res.Diagnostics[2], "no draft")
	assert.Nil(t, res.State.Document)
	assert.Equal(t, 1, res.State.Iteration)
}

func TestGraph_SuspendAndResume(t *testing.T) {
	gen := mock.NewProvider()
	store := statestore.NewMemoryStore()
	r := newRunner(t, Deps{
		Fetcher:   &fakeFetcher{change: testChange()},
		Extractor: newExtractor(t, gen),
	}, workflow.WithStore(store))
	ctx := context.Background()

	res, err := r.Run(ctx, workflow.NewState("octo/widgets", testSHA, "", 2))
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAwaitingInput, res.Status)
	assert.Equal(t, workflow.NodeReview, res.Awaiting)
	assert.Zero(t, res.State.Iteration)
	runID := res.RunID

	feedback := workflow.ReviewInput(0, false, "Add a code sample")
	res, err = r.Resume(ctx, runID, feedback)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAwaitingInput, res.Status)
	assert.Equal(t, 1, res.State.Iteration)
	assert.Equal(t, 2, gen.Calls("document"))

	// Re-delivering the same answer is recognized and changes nothing.
	res, err = r.Resume(ctx, runID, feedback)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, 1, res.State.Iteration)
	assert.Equal(t, 2, gen.Calls("document"))

	res, err = r.Resume(ctx, runID, workflow.ReviewInput(1, true, ""))
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAwaitingInput, res.Status)
	assert.Equal(t, workflow.NodeDecide, res.Awaiting)
	assert.Equal(t, 2, res.State.Iteration)

	res, err = r.Resume(ctx, runID, workflow.ChoiceInput(2, types.PublishDiscard))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, res.Status)
	assert.Equal(t, types.PublishDiscard, res.State.Publishing)
	assert.Empty(t, res.State.PublishedLocation)
	assert.Empty(t, res.Diagnostics)

	stored, err := store.Load(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, stored.Status)
}

func TestGraph_BoundStopsLoop(t *testing.T) {
	gen := mock.NewProvider()
	reviewer := &scriptedReviewer{verdicts: []Verdict{
		{Feedback: "again"}, {Feedback: "again"}, {Feedback: "again"},
	}}
	s := workflow.NewState("octo/widgets", testSHA, "", 2)
	s.Publishing = types.PublishGhost

	r := newRunner(t, Deps{
		Fetcher:   &fakeFetcher{change: testChange()},
		Extractor: newExtractor(t, gen),
		Reviewer:  reviewer,
		Chooser:   panicChooser{},
	})
	res, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, res.Status)
	assert.Equal(t, 2, res.State.Iteration)
	assert.Equal(t, 2, reviewer.calls)
	require.Len(t, res.Diagnostics, 1, "ghost is not configured")
	assert.Contains(t, res.Diagnostics[0], "Ghost destination is not configured")
}
