// Package logger provides structured logging for BlueStar with automatic
// redaction of credentials.
//
// It wraps log/slog with:
//   - a ContextHandler that lifts run, stage and provider identifiers out of
//     context.Context into every record
//   - redaction of API keys and tokens in string attributes
//   - level and format configuration from pkg/config
//   - helpers for logging model calls
//
// Components receive a *slog.Logger by injection. DefaultLogger exists for the
// CLI and for components constructed without one.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultLogger is the process-wide fallback logger. It is initialized from
// the LOG_LEVEL environment variable and replaced by Configure.
var DefaultLogger *slog.Logger

// logOutput is where DefaultLogger writes.
var logOutput io.Writer = os.Stderr

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	DefaultLogger = New(logOutput, Config{Level: level.String()})
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel replaces DefaultLogger with one at the given level.
func SetLevel(level slog.Level) {
	DefaultLogger = New(logOutput, Config{Level: level.String()})
}

// SetVerbose enables debug-level logging when verbose is true, otherwise info.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// OrDefault returns l, or DefaultLogger when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return DefaultLogger
	}
	return l
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// LLMCall logs a model invocation.
func LLMCall(ctx context.Context, l *slog.Logger, provider, model string, temperature float64, attrs ...any) {
	all := make([]any, 0, 6+len(attrs))
	all = append(all, "provider", provider, "model", model, "temperature", temperature)
	all = append(all, attrs...)
	OrDefault(l).InfoContext(ctx, "LLM call", all...)
}

// LLMResponse logs a completed model invocation with token usage.
func LLMResponse(ctx context.Context, l *slog.Logger, provider, model string, tokensIn, tokensOut int, attrs ...any) {
	all := make([]any, 0, 8+len(attrs))
	all = append(all, "provider", provider, "model", model, "tokens_in", tokensIn, "tokens_out", tokensOut)
	all = append(all, attrs...)
	OrDefault(l).InfoContext(ctx, "LLM response", all...)
}

// LLMError logs a failed model invocation.
func LLMError(ctx context.Context, l *slog.Logger, provider, model string, err error, attrs ...any) {
	all := make([]any, 0, 6+len(attrs))
	all = append(all, "provider", provider, "model", model, "error", err)
	all = append(all, attrs...)
	OrDefault(l).ErrorContext(ctx, "LLM call failed", all...)
}
