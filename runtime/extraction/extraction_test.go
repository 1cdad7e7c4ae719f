package extraction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/prompt"
	"github.com/domini04/bluestar/runtime/providers"
	"github.com/domini04/bluestar/runtime/providers/mock"
	"github.com/domini04/bluestar/runtime/types"
)

var analysisVars = map[string]string{"repo": "octo/widgets", "commit": "e64997b2", "message": "Add cache"}

const validAnalysis = `{"change_type":"performance","technical_summary":"Adds an LRU cache","business_impact":"Faster pages",
"key_changes":["cache"],"technical_details":[],"affected_components":["api"],"narrative_angle":"",
"context_assessment":"sufficient"}`

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) ObserveExtraction(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func newAdapter(t *testing.T, gen providers.Generator, opts ...Option) *Adapter {
	t.Helper()
	reg, err := prompt.NewRegistry()
	require.NoError(t, err)
	return NewAdapter(gen, reg, append([]Option{WithLogger(logger.Discard())}, opts...)...)
}

func TestExtract_Success(t *testing.T) {
	gen := mock.NewProvider(mock.Turn{Content: "```json\n" + validAnalysis + "\n```"})
	obs := &recordingObserver{}
	a := newAdapter(t, gen, WithObserver(obs))

	got, err := Extract[types.Analysis](context.Background(), a, prompt.TaskAnalysis, analysisVars,
		Params{Temperature: 0.3, MaxTokens: 4096, Timeout: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, types.ChangePerformance, got.ChangeType)
	assert.Equal(t, []string{"api"}, got.AffectedComponents)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "analysis", reqs[0].Schema)
	assert.True(t, reqs[0].JSON)
	assert.InDelta(t, 0.3, reqs[0].Temperature, 1e-9)
	assert.Equal(t, 4096, reqs[0].MaxTokens)
	assert.Contains(t, reqs[0].Prompt, "octo/widgets")

	require.Len(t, obs.events, 1)
	assert.NoError(t, obs.events[0].Err)
	assert.Equal(t, "mock", obs.events[0].Provider)
}

func TestExtract_SchemaFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		text    string
	}{
		{"not json", "I'm sorry, I cannot help with that.", "not valid JSON"},
		{"wrong enum", `{"change_type":"rewrite"}`, "does not match the analysis schema"},
		{"truncated", `{"change_type":"feature","technical_summary":"x"`, "not valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mock.NewProvider(mock.Turn{Content: tt.content})
			a := newAdapter(t, gen)

			got, err := Extract[types.Analysis](context.Background(), a, prompt.TaskAnalysis, analysisVars, Params{})
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, pkgerrors.KindSchemaValidation, pkgerrors.KindOf(err))
			assert.Contains(t, err.Error(), tt.text)
			assert.Equal(t, 1, gen.Calls("analysis"), "schema failures are not retried")
		})
	}
}

func TestExtract_GeneratorErrorKeepsKind(t *testing.T) {
	gen := mock.NewProvider(mock.Turn{Error: "429 quota", Kind: "rate_limited"})
	obs := &recordingObserver{}
	a := newAdapter(t, gen, WithObserver(obs))

	var out types.Analysis
	err := a.Extract(context.Background(), prompt.TaskAnalysis, analysisVars, Params{}, &out)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindRateLimited, pkgerrors.KindOf(err))
	assert.Empty(t, out.ChangeType)
	require.Len(t, obs.events, 1)
	assert.Error(t, obs.events[0].Err)
}

type slowGenerator struct{}

func (slowGenerator) ID() string    { return "slow" }
func (slowGenerator) Model() string { return "slow-1" }
func (slowGenerator) Generate(ctx context.Context, _ providers.Request) (*providers.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExtract_TimeoutIsClassified(t *testing.T) {
	a := newAdapter(t, slowGenerator{})
	var out types.Analysis
	err := a.Extract(context.Background(), prompt.TaskAnalysis, analysisVars, Params{Timeout: 20 * time.Millisecond}, &out)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindTimeout, pkgerrors.KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExtract_MissingVarsIsConfiguration(t *testing.T) {
	gen := mock.NewProvider()
	a := newAdapter(t, gen)
	var out types.Document
	err := a.Extract(context.Background(), prompt.TaskSynthesisRefinement, map[string]string{"draft": "x"}, Params{}, &out)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindConfiguration, pkgerrors.KindOf(err))
	assert.Zero(t, gen.Calls("document"), "generator is not called")
}

func TestExtract_RecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	gen := mock.NewProvider(mock.Turn{Content: "nope"})
	a := newAdapter(t, gen, WithTracer(tp.Tracer("test")))

	var out types.Analysis
	_ = a.Extract(context.Background(), prompt.TaskAnalysis, analysisVars, Params{}, &out)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "extraction.analysis", spans[0].Name())
	assert.Equal(t, otelcodes.Error, spans[0].Status().Code)
	assert.Equal(t, "schema_validation", spans[0].Status().Description)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go:\n{\"a\":{\"b\":2}}\nThanks!", `{"a":{"b":2}}`},
		{"  no json here ", "no json here"},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
