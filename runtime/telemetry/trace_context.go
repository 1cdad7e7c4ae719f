package telemetry

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// envCarrier maps propagation fields to upper-case environment variables,
// the convention CI systems use to hand a parent trace to a child process
// (TRACEPARENT, TRACESTATE, BAGGAGE, X_AMZN_TRACE_ID).
type envCarrier struct {
	lookup func(string) (string, bool)
}

var _ propagation.TextMapCarrier = envCarrier{}

func envKey(field string) string {
	return strings.ToUpper(strings.ReplaceAll(field, "-", "_"))
}

func (c envCarrier) Get(key string) string {
	v, _ := c.lookup(envKey(key))
	return v
}

// Set is a no-op; the environment is only read.
func (envCarrier) Set(string, string) {}

func (c envCarrier) Keys() []string {
	var keys []string
	for _, f := range otel.GetTextMapPropagator().Fields() {
		if _, ok := c.lookup(envKey(f)); ok {
			keys = append(keys, f)
		}
	}
	return keys
}

// ContextFromEnv continues a trace started by the calling process, when the
// environment carries one, so a run shows up under a CI pipeline's trace.
func ContextFromEnv(ctx context.Context) context.Context {
	return contextFrom(ctx, os.LookupEnv)
}

func contextFrom(ctx context.Context, lookup func(string) (string, bool)) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, envCarrier{lookup: lookup})
}
