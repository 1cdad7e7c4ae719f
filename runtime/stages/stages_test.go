package stages

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/pkg/testutil"
	"github.com/domini04/bluestar/runtime/extraction"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/prompt"
	"github.com/domini04/bluestar/runtime/providers/mock"
	"github.com/domini04/bluestar/runtime/publish"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const testSHA = "e64997b24625a4e90c39d019d4fd25a37a4b3185"

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	change *types.ChangeRecord
	err    error
	calls  int
}

func (f *fakeFetcher) FetchChange(_ context.Context, repo, sha string) (*types.ChangeRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.change, nil
}

type scriptedReviewer struct {
	verdicts []Verdict
	err      error
	calls    int
}

func (r *scriptedReviewer) Review(_ context.Context, _ *types.Document, _, _ int) (Verdict, error) {
	r.calls++
	if r.err != nil {
		return Verdict{}, r.err
	}
	if len(r.verdicts) == 0 {
		return Verdict{}, ErrNoInput
	}
	v := r.verdicts[0]
	r.verdicts = r.verdicts[1:]
	return v, nil
}

type scriptedChooser struct {
	answers  []string
	rejected []string
	err      error
}

func (c *scriptedChooser) Choose(_ context.Context, _ *types.Document, rejected string) (string, error) {
	c.rejected = append(c.rejected, rejected)
	if c.err != nil {
		return "", c.err
	}
	if len(c.answers) == 0 {
		return "", ErrNoInput
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

type panicChooser struct{}

func (panicChooser) Choose(context.Context, *types.Document, string) (string, error) {
	panic("chooser must not be called")
}

type recordingSink struct {
	name    string
	loc     string
	err     error
	targets []publish.Target
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, _ *types.Document, t publish.Target) (string, error) {
	s.targets = append(s.targets, t)
	return s.loc, s.err
}

type publishEvent struct {
	sink string
	err  error
}

type recordingObserver struct {
	mu     sync.Mutex
	events []publishEvent
}

func (o *recordingObserver) ObservePublish(_ context.Context, sink string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, publishEvent{sink: sink, err: err})
}

func testBase(name string) base {
	return base{name: name, log: logger.Discard(), now: testutil.FixedClock(fixedNow)}
}

func newExtractor(t *testing.T, gen *mock.Provider) *extraction.Adapter {
	t.Helper()
	reg, err := prompt.NewRegistry()
	require.NoError(t, err)
	return extraction.NewAdapter(gen, reg, extraction.WithLogger(logger.Discard()))
}

func testChange() *types.ChangeRecord {
	return &types.ChangeRecord{
		SHA:     testSHA,
		Message: "Add an LRU cache to commit lookups",
		Author:  "Ada",
		Date:    fixedNow,
		Files: []types.FileDiff{
			{Filename: "cache/lru.go", Status: "added", Additions: 80},
		},
		Diff: "+package cache",
		Project: &types.ProjectContext{
			Description: "Widget service",
			Language:    "Go",
			ProjectType: "go",
		},
	}
}

func testAnalysis() *types.Analysis {
	return &types.Analysis{
		ChangeType:         types.ChangePerformance,
		TechnicalSummary:   "Adds an LRU cache",
		KeyChanges:         []string{"cache"},
		AffectedComponents: []string{"api", "cache"},
		ContextAssessment:  types.ContextSufficient,
	}
}

func testDocument() *types.Document {
	return &types.Document{
		Title:   "Faster Lookups",
		Author:  "Ada",
		Date:    "2025-06-01",
		Tags:    []string{"go"},
		Summary: "We added a cache.",
		Body:    []types.ContentBlock{types.Paragraph("It is faster now.")},
	}
}

func newState() *workflow.State {
	return workflow.NewState("octo/widgets", testSHA, "", 3)
}

func TestValidateStage(t *testing.T) {
	st := &ValidateStage{base: testBase(workflow.NodeValidate)}

	s := workflow.NewState(" https://github.com/Octo/Widgets.git ", "E64997B24625A4E90C39D019D4FD25A37A4B3185", "", 3)
	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, "Octo/Widgets", s.Repo)
	assert.Equal(t, testSHA, s.Commit)
	assert.Empty(t, s.Errors)
	assert.True(t, s.IsComplete(workflow.NodeValidate))

	s = workflow.NewState("not a repo", "abc", "", 3)
	require.NoError(t, st.Run(context.Background(), s))
	require.Len(t, s.Errors, 2)
	assert.True(t, strings.HasPrefix(s.Errors[0], "Invalid input while validating the repository 'not a repo': "), s.Errors[0])
	assert.True(t, strings.HasPrefix(s.Errors[1], "Invalid input while validating the commit SHA 'abc': "), s.Errors[1])
	for _, msg := range s.Errors {
		assert.Contains(t, msg, "full 40-character commit SHA")
	}
	assert.False(t, s.IsComplete(workflow.NodeValidate), "fetch relies on validate completing only on success")
}

func TestFetchStage_RequiresValidation(t *testing.T) {
	f := &fakeFetcher{change: testChange()}
	st := NewFetchStage(testBase(workflow.NodeFetch), f, time.Second)

	s := newState()
	require.NoError(t, st.Run(context.Background(), s))
	assert.Zero(t, f.calls)
	assert.Nil(t, s.Change)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "not validated")
	assert.True(t, s.IsComplete(workflow.NodeFetch))
}

func TestFetchStage(t *testing.T) {
	f := &fakeFetcher{change: testChange()}
	st := NewFetchStage(testBase(workflow.NodeFetch), f, time.Second)

	s := newState()
	s.MarkComplete(workflow.NodeValidate, fixedNow)
	require.NoError(t, st.Run(context.Background(), s))
	assert.Same(t, f.change, s.Change)
	assert.Empty(t, s.Errors)
	assert.Equal(t, workflow.NodeAnalyze, workflow.RouteFetch(s.Change))
}

func TestFetchStage_FailureIsClassified(t *testing.T) {
	f := &fakeFetcher{err: pkgerrors.Newf("github", "GetCommit", "404 Not Found").WithKind(pkgerrors.KindNotFound)}
	st := NewFetchStage(testBase(workflow.NodeFetch), f, time.Second)

	s := newState()
	s.MarkComplete(workflow.NodeValidate, fixedNow)
	require.NoError(t, st.Run(context.Background(), s))
	assert.Nil(t, s.Change)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "not found")
	assert.Contains(t, s.Errors[0], "e64997b2")
	assert.Equal(t, workflow.NodeEnd, workflow.RouteFetch(s.Change))
}

// throttledFetcher stands in for a client that pauses for a quota reset
// before its retry succeeds.
type throttledFetcher struct {
	change  *types.ChangeRecord
	pause   time.Duration
	maxWait time.Duration
}

func (f *throttledFetcher) MaxRateLimitWait() time.Duration { return f.maxWait }

func (f *throttledFetcher) FetchChange(ctx context.Context, _, _ string) (*types.ChangeRecord, error) {
	select {
	case <-time.After(f.pause):
		return f.change, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestFetchStage_RateLimitWaitOutlastsStageTimeout(t *testing.T) {
	// The reset lands after the stage timeout but within the allowed wait.
	f := &throttledFetcher{change: testChange(), pause: 150 * time.Millisecond, maxWait: time.Second}
	st := NewFetchStage(testBase(workflow.NodeFetch), f, 50*time.Millisecond)

	s := newState()
	s.MarkComplete(workflow.NodeValidate, fixedNow)
	require.NoError(t, st.Run(context.Background(), s))
	assert.Empty(t, s.Errors)
	assert.Same(t, f.change, s.Change)
}

func TestFetchStage_TimeoutStillApplies(t *testing.T) {
	f := &throttledFetcher{change: testChange(), pause: time.Second, maxWait: 20 * time.Millisecond}
	st := NewFetchStage(testBase(workflow.NodeFetch), f, 20*time.Millisecond)

	s := newState()
	s.MarkComplete(workflow.NodeValidate, fixedNow)
	require.NoError(t, st.Run(context.Background(), s))
	assert.Nil(t, s.Change)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "timed out")
}

func TestAnalyzeStage(t *testing.T) {
	gen := mock.NewProvider()
	params := extraction.Params{Temperature: 0.3, MaxTokens: 4096, Timeout: time.Minute}
	st := NewAnalyzeStage(testBase(workflow.NodeAnalyze), newExtractor(t, gen), params)

	s := newState()
	s.Change = testChange()
	s.Instructions = "Focus on latency"
	require.NoError(t, st.Run(context.Background(), s))

	require.NotNil(t, s.Analysis)
	assert.Equal(t, types.ChangeFeature, s.Analysis.ChangeType)
	assert.Empty(t, s.Errors)
	assert.True(t, s.IsComplete(workflow.NodeAnalyze))

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.InDelta(t, 0.3, reqs[0].Temperature, 1e-9)
	assert.Contains(t, reqs[0].Prompt, "cache/lru.go")
	assert.Contains(t, reqs[0].Prompt, "Focus on latency")
	assert.Contains(t, reqs[0].Prompt, "Widget service")
}

func TestAnalyzeStage_MissingChange(t *testing.T) {
	gen := mock.NewProvider()
	st := NewAnalyzeStage(testBase(workflow.NodeAnalyze), newExtractor(t, gen), extraction.Params{})

	s := newState()
	require.NoError(t, st.Run(context.Background(), s))
	assert.Nil(t, s.Analysis)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "commit record was not fetched")
	assert.Zero(t, gen.Calls("analysis"))
	assert.True(t, s.IsComplete(workflow.NodeAnalyze))
}

func TestSynthesizeStage_WithoutAnalysis(t *testing.T) {
	gen := mock.NewProvider()
	st := NewSynthesizeStage(testBase(workflow.NodeSynthesize), newExtractor(t, gen), extraction.Params{}, extraction.Params{})

	s := newState()
	require.NotPanics(t, func() { require.NoError(t, st.Run(context.Background(), s)) })

	assert.Len(t, s.Errors, 1)
	assert.Nil(t, s.Document)
	assert.True(t, s.IsComplete(workflow.NodeSynthesize))
	assert.Zero(t, gen.Calls("document"))
}

func TestSynthesizeStage_Initial(t *testing.T) {
	gen := mock.NewProvider()
	st := NewSynthesizeStage(testBase(workflow.NodeSynthesize), newExtractor(t, gen),
		extraction.Params{Temperature: 0.7}, extraction.Params{Temperature: 0.2})

	s := newState()
	s.Change = testChange()
	s.Analysis = testAnalysis()
	require.NoError(t, st.Run(context.Background(), s))

	require.NotNil(t, s.Document)
	assert.Equal(t, "Keeping Humans in the Loop", s.Document.Title)
	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.InDelta(t, 0.7, reqs[0].Temperature, 1e-9)
	assert.Contains(t, reqs[0].Prompt, "Adds an LRU cache")
	assert.Contains(t, reqs[0].Prompt, "api, cache")
}

func TestSynthesizeStage_RefinementClearsFeedback(t *testing.T) {
	gen := mock.NewProvider()
	st := NewSynthesizeStage(testBase(workflow.NodeSynthesize), newExtractor(t, gen),
		extraction.Params{Temperature: 0.7}, extraction.Params{Temperature: 0.2})

	s := newState()
	s.Change = testChange()
	s.Analysis = testAnalysis()
	s.Document = testDocument()
	s.Feedback = "Shorten the introduction"
	require.True(t, Refining(s))

	require.NoError(t, st.Run(context.Background(), s))
	assert.Empty(t, s.Feedback)
	assert.Empty(t, s.Errors)
	assert.Equal(t, "Keeping Humans in the Loop", s.Document.Title)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.InDelta(t, 0.2, reqs[0].Temperature, 1e-9)
	assert.Contains(t, reqs[0].Prompt, "Shorten the introduction")
	assert.Contains(t, reqs[0].Prompt, "# Faster Lookups")
}

func TestSynthesizeStage_FailureKeepsDraft(t *testing.T) {
	gen := mock.NewProvider(mock.Turn{Error: "429 too many requests", Kind: "rate_limited"})
	st := NewSynthesizeStage(testBase(workflow.NodeSynthesize), newExtractor(t, gen), extraction.Params{}, extraction.Params{})

	s := newState()
	s.Analysis = testAnalysis()
	prev := testDocument()
	s.Document = prev
	s.Feedback = "More code please"

	require.NoError(t, st.Run(context.Background(), s))
	assert.Same(t, prev, s.Document)
	assert.Equal(t, "More code please", s.Feedback)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "Rate limit")
}

func TestSynthesizeStage_SchemaFailureNotRetried(t *testing.T) {
	gen := mock.NewProvider(mock.Turn{Content: `{"title": "only a title"}`})
	st := NewSynthesizeStage(testBase(workflow.NodeSynthesize), newExtractor(t, gen), extraction.Params{}, extraction.Params{})

	s := newState()
	s.Analysis = testAnalysis()
	require.NoError(t, st.Run(context.Background(), s))
	assert.Nil(t, s.Document)
	assert.Equal(t, 1, gen.Calls("document"))
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "expected format")
}

func TestReviewStage_Inbox(t *testing.T) {
	st := &ReviewStage{base: testBase(workflow.NodeReview), reviewer: &scriptedReviewer{err: errors.New("must not be asked")}}

	s := newState()
	s.Document = testDocument()
	in := workflow.ReviewInput(0, false, "  Add a benchmark  ")
	s.Inbox = &in

	require.NoError(t, st.Run(context.Background(), s))
	assert.Nil(t, s.Inbox)
	require.NotNil(t, s.Satisfied)
	assert.False(t, *s.Satisfied)
	assert.Equal(t, "Add a benchmark", s.Feedback)
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, workflow.NodeSynthesize, workflow.RouteIteration(s.Iteration, s.MaxIterations, s.Satisfied))
}

func TestReviewStage_SuspendsWithoutReviewer(t *testing.T) {
	st := &ReviewStage{base: testBase(workflow.NodeReview)}
	s := newState()
	s.Document = testDocument()

	err := st.Run(context.Background(), s)
	assert.ErrorIs(t, err, workflow.ErrAwaitingInput)
	assert.Zero(t, s.Iteration, "a suspended pass is not counted")
	assert.False(t, s.IsComplete(workflow.NodeReview))

	st.reviewer = &scriptedReviewer{}
	assert.ErrorIs(t, st.Run(context.Background(), s), workflow.ErrAwaitingInput)
	assert.Zero(t, s.Iteration)
}

func TestReviewStage_ReasksForFeedback(t *testing.T) {
	r := &scriptedReviewer{verdicts: []Verdict{{Satisfied: false}, {Satisfied: false, Feedback: " "}, {Satisfied: true, Feedback: "ignored"}}}
	st := &ReviewStage{base: testBase(workflow.NodeReview), reviewer: r}

	s := newState()
	s.Document = testDocument()
	s.Feedback = "old"
	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, 3, r.calls)
	require.NotNil(t, s.Satisfied)
	assert.True(t, *s.Satisfied)
	assert.Empty(t, s.Feedback)
	assert.Equal(t, 1, s.Iteration)
}

func TestReviewStage_ReviewerError(t *testing.T) {
	st := &ReviewStage{base: testBase(workflow.NodeReview), reviewer: &scriptedReviewer{err: errors.New("terminal closed")}}
	s := newState()
	s.Document = testDocument()
	yes := true
	s.Satisfied = &yes

	require.NoError(t, st.Run(context.Background(), s))
	assert.Nil(t, s.Satisfied)
	assert.Equal(t, 1, s.Iteration)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, workflow.NodeDecide, workflow.RouteIteration(s.Iteration, s.MaxIterations, s.Satisfied))
}

func TestReviewStage_MissingDocument(t *testing.T) {
	st := &ReviewStage{base: testBase(workflow.NodeReview)}
	s := newState()

	require.NoError(t, st.Run(context.Background(), s))
	assert.Nil(t, s.Satisfied)
	assert.Equal(t, 1, s.Iteration)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "no draft")
}

func TestDecideStage_PreSuppliedBypass(t *testing.T) {
	st := &DecideStage{base: testBase(workflow.NodeDecide), chooser: panicChooser{}}

	s := newState()
	s.Publishing = "Notion"
	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, types.PublishNotion, s.Publishing)
	assert.True(t, s.IsComplete(workflow.NodeDecide))

	s = newState()
	s.Document = testDocument()
	s.Publishing = "medium"
	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, types.PublishChoice("medium"), s.Publishing)
	assert.Equal(t, workflow.NodeEnd, workflow.RoutePublishing(s.Publishing))
	assert.Empty(t, s.Errors)
}

func TestDecideStage_ReasksUntilValid(t *testing.T) {
	c := &scriptedChooser{answers: []string{"medium", "", " LOCAL "}}
	st := &DecideStage{base: testBase(workflow.NodeDecide), chooser: c}

	s := newState()
	s.Document = testDocument()
	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, types.PublishLocal, s.Publishing)
	assert.Equal(t, []string{"", "medium", ""}, c.rejected)
	assert.Equal(t, workflow.NodeSaveLocal, workflow.RoutePublishing(s.Publishing))
}

func TestDecideStage_SuspendsAndResumesFromInbox(t *testing.T) {
	st := &DecideStage{base: testBase(workflow.NodeDecide), chooser: &scriptedChooser{}}
	s := newState()
	s.Document = testDocument()

	assert.ErrorIs(t, st.Run(context.Background(), s), workflow.ErrAwaitingInput)
	assert.Equal(t, types.PublishNone, s.Publishing)

	in := workflow.ChoiceInput(1, types.PublishGhost)
	s.Inbox = &in
	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, types.PublishGhost, s.Publishing)
	assert.Nil(t, s.Inbox)
}

func TestDecideStage_MissingDocument(t *testing.T) {
	st := &DecideStage{base: testBase(workflow.NodeDecide), chooser: panicChooser{}}
	s := newState()

	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, types.PublishNone, s.Publishing)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, workflow.NodeEnd, workflow.RoutePublishing(s.Publishing))
}

func TestSinkStage(t *testing.T) {
	sink := &recordingSink{name: "ghost", loc: "https://blog.example.com/p/faster/"}
	obs := &recordingObserver{}
	st := newSinkStage(testBase(workflow.NodePublishGhost), destGhost, sink, time.Second, []PublishObserver{obs})

	s := newState()
	s.Document = testDocument()
	require.NoError(t, st.Run(context.Background(), s))
	assert.Equal(t, "https://blog.example.com/p/faster/", s.PublishedLocation)
	assert.Empty(t, s.Errors)
	require.Len(t, sink.targets, 1)
	assert.Equal(t, publish.Target{Repo: "octo/widgets", Commit: testSHA, Now: fixedNow}, sink.targets[0])
	assert.Equal(t, []publishEvent{{sink: "ghost"}}, obs.events)
	assert.True(t, s.IsComplete(workflow.NodePublishGhost))
}

func TestSinkStage_Failures(t *testing.T) {
	s := newState()
	s.Document = testDocument()
	st := newSinkStage(testBase(workflow.NodePublishNotion), destNotion, nil, time.Second, nil)
	require.NoError(t, st.Run(context.Background(), s))
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "Configuration error while publishing to Notion")

	boom := pkgerrors.Newf("notion", "CreatePage", "validation failed").WithKind(pkgerrors.KindPublishing)
	obs := &recordingObserver{}
	st = newSinkStage(testBase(workflow.NodePublishNotion), destNotion, &recordingSink{name: "notion", err: boom}, time.Second, []PublishObserver{obs})
	s = newState()
	s.Document = testDocument()
	require.NoError(t, st.Run(context.Background(), s))
	assert.Empty(t, s.PublishedLocation)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "Publishing failed")
	require.Len(t, obs.events, 1)
	assert.ErrorIs(t, obs.events[0].err, boom)
}
