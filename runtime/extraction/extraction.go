// Package extraction turns a prompt and a target schema into a validated,
// typed artifact produced by a generator.
//
// One Extract call renders the prompt, invokes the generator under a per-call
// timeout, strips Markdown fences from the reply, parses it as JSON, checks it
// against the JSON schema and decodes it into the destination. Every failure
// is a *pkgerrors.ContextualError carrying a Kind; schema failures are never
// retried.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/prompt"
	"github.com/domini04/bluestar/runtime/prompt/schema"
	"github.com/domini04/bluestar/runtime/providers"
)

const (
	component  = "extraction"
	tracerName = "github.com/domini04/bluestar/runtime/extraction"

	// maxReportedViolations bounds the schema errors quoted in a failure.
	maxReportedViolations = 3
)

// Params are the generation parameters for one call.
type Params struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Event describes one finished generator call.
type Event struct {
	Task         string
	Schema       string
	Provider     string
	Model        string
	Duration     time.Duration
	InputTokens  int
	OutputTokens int
	Err          error
}

// Observer receives an Event after every call.
type Observer interface {
	ObserveExtraction(ctx context.Context, ev Event)
}

// Adapter binds a generator to the prompt registry.
type Adapter struct {
	gen       providers.Generator
	prompts   *prompt.Registry
	log       *slog.Logger
	observers []Observer
	tracer    trace.Tracer
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithObserver adds an observer, such as the Prometheus recorder.
func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observers = append(a.observers, o) }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(a *Adapter) { a.tracer = t }
}

// NewAdapter creates an Adapter.
func NewAdapter(gen providers.Generator, prompts *prompt.Registry, opts ...Option) *Adapter {
	a := &Adapter{gen: gen, prompts: prompts}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logger.OrDefault(a.log)
	if a.tracer == nil {
		a.tracer = otel.Tracer(tracerName)
	}
	return a
}

// Generator returns the wrapped generator.
func (a *Adapter) Generator() providers.Generator { return a.gen }

// Extract renders task with vars, calls the generator and decodes the
// validated reply into out. out is left untouched on failure.
func (a *Adapter) Extract(ctx context.Context, task string, vars map[string]string, params Params, out any) error {
	assembled, err := a.prompts.Assemble(task, vars)
	if err != nil {
		return pkgerrors.New(component, task, err).WithKind(pkgerrors.KindConfiguration)
	}

	ctx, span := a.tracer.Start(ctx, "extraction."+task, trace.WithAttributes(
		attribute.String("bluestar.task", task),
		attribute.String("bluestar.schema", assembled.Schema),
		attribute.String("llm.provider", a.gen.ID()),
		attribute.String("llm.model", a.gen.Model()),
	))
	defer span.End()

	callCtx := ctx
	if params.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.gen.Generate(callCtx, providers.Request{
		Schema:      assembled.Schema,
		System:      assembled.System,
		Prompt:      assembled.User,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		JSON:        true,
	})
	ev := Event{
		Task:     task,
		Schema:   assembled.Schema,
		Provider: a.gen.ID(),
		Model:    a.gen.Model(),
		Duration: time.Since(start),
	}
	if err == nil {
		ev.InputTokens, ev.OutputTokens = resp.InputTokens, resp.OutputTokens
		err = decode(task, assembled.Schema, resp.Content, out)
	} else if pkgerrors.KindOf(err) == pkgerrors.KindUnknown {
		err = providers.TransportError(a.gen.ID(), err)
	}
	ev.Err = err

	for _, o := range a.observers {
		o.ObserveExtraction(ctx, ev)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(pkgerrors.KindOf(err)))
		a.log.WarnContext(ctx, "Extraction failed", "task", task, "kind", pkgerrors.KindOf(err), "error", err)
		return err
	}
	span.SetAttributes(
		attribute.Int("llm.tokens_in", ev.InputTokens),
		attribute.Int("llm.tokens_out", ev.OutputTokens),
	)
	a.log.DebugContext(ctx, "Extraction succeeded", "task", task, "duration", ev.Duration)
	return nil
}

// Extract is the typed form of Adapter.Extract.
func Extract[T any](ctx context.Context, a *Adapter, task string, vars map[string]string, params Params) (*T, error) {
	var v T
	if err := a.Extract(ctx, task, vars, params, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decode(task, schemaName, content string, out any) error {
	raw := StripFences(content)
	if !json.Valid([]byte(raw)) {
		return schemaError(task, "reply is not valid JSON: %s", preview(raw))
	}
	res, err := schema.Validate(schemaName, []byte(raw))
	if err != nil {
		return pkgerrors.New(component, task, err).WithKind(pkgerrors.KindConfiguration)
	}
	if !res.Valid {
		return schemaError(task, "reply does not match the %s schema: %s", schemaName, res.Summary(maxReportedViolations)).
			WithDetails(map[string]any{"violations": len(res.Errors)})
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return schemaError(task, "decode %s: %v", schemaName, err)
	}
	return nil
}

func schemaError(task, format string, args ...any) *pkgerrors.ContextualError {
	return pkgerrors.Newf(component, task, format, args...).WithKind(pkgerrors.KindSchemaValidation)
}

// StripFences removes a surrounding Markdown code fence and any prose
// outside the outermost JSON object.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if json.Valid([]byte(s)) {
		return s
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func preview(s string) string {
	const limit = 120
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		return fmt.Sprintf("%q...", s[:limit])
	}
	return fmt.Sprintf("%q", s)
}
