package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/domini04/bluestar/runtime/workflow"
)

func TestTracer_NilProvider(t *testing.T) {
	if Tracer(nil) == nil {
		t.Fatal("expected non-nil tracer")
	}
	if Tracer(noop.NewTracerProvider()) == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestSetupPropagation(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)

	SetupPropagation()

	fields := strings.Join(otel.GetTextMapPropagator().Fields(), ",")
	for _, want := range []string{"traceparent", "baggage", "X-Amzn-Trace-Id"} {
		if !strings.Contains(fields, want) {
			t.Errorf("expected propagator to handle %q, got %s", want, fields)
		}
	}
}

func TestSetup_NoEndpoint(t *testing.T) {
	origProp := otel.GetTextMapPropagator()
	origTP := otel.GetTracerProvider()
	defer func() {
		otel.SetTextMapPropagator(origProp)
		otel.SetTracerProvider(origTP)
	}()

	shutdown, err := Setup(context.Background(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown failed: %v", err)
	}
	if otel.GetTracerProvider() != origTP {
		t.Error("global provider must be untouched without an endpoint")
	}
}

func TestNewTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(t.Context(), "http://localhost:0/v1/traces", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = tp.Shutdown(t.Context()) }()

	var _ trace.TracerProvider = tp
}

func TestContextFromEnv(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)
	SetupPropagation()

	env := map[string]string{
		"TRACEPARENT": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
	ctx := contextFrom(context.Background(), func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsRemote() {
		t.Fatalf("expected a remote span context, got %+v", sc)
	}
	if got := sc.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %s", got)
	}

	empty := contextFrom(context.Background(), func(string) (string, bool) { return "", false })
	if trace.SpanContextFromContext(empty).IsValid() {
		t.Error("no span context expected without TRACEPARENT")
	}
}

func TestStageMiddleware(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mw := StageMiddleware(tp.Tracer("test"))
	s := workflow.NewState("octo/widgets", strings.Repeat("e", 40), "", 3)
	s.RunID = "run-1"

	_ = mw(context.Background(), workflow.NodeFetch, s, func(context.Context) error { return nil })
	_ = mw(context.Background(), workflow.NodeAnalyze, s, func(context.Context) error {
		s.AddDiagnostic("Analysis failed")
		return nil
	})
	err := mw(context.Background(), workflow.NodeReview, s, func(context.Context) error { return workflow.ErrAwaitingInput })
	if !errors.Is(err, workflow.ErrAwaitingInput) {
		t.Fatalf("middleware must pass the stage error through, got %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if spans[0].Name() != "stage.fetch" || spans[0].Status().Code == codes.Error {
		t.Errorf("unexpected fetch span: %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "Analysis failed" {
		t.Errorf("analysis span should carry the diagnostic, got %v", spans[1].Status())
	}
	if ev := spans[2].Events(); len(ev) != 1 || ev[0].Name != "awaiting_input" {
		t.Errorf("review span should record the suspension, got %v", ev)
	}
}
