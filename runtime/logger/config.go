package logger

import (
	"io"
	"log/slog"
	"sort"
)

// Log format constants.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config selects the level, output format and fields added to every record.
// It mirrors config.LoggingSpec to avoid an import cycle.
type Config struct {
	Level        string
	Format       string
	CommonFields map[string]string
}

// New builds a logger writing to w. Records pass through a ContextHandler,
// so context identifiers and redaction apply.
func New(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var base slog.Handler
	if cfg.Format == FormatJSON {
		base = slog.NewJSONHandler(w, opts)
	} else {
		base = slog.NewTextHandler(w, opts)
	}

	return slog.New(NewContextHandler(base, commonAttrs(cfg.CommonFields)...))
}

// Configure replaces DefaultLogger according to cfg and returns it.
func Configure(cfg Config) *slog.Logger {
	DefaultLogger = New(logOutput, cfg)
	return DefaultLogger
}

// commonAttrs converts fields to attributes in key order so output is stable.
func commonAttrs(fields map[string]string) []slog.Attr {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, fields[k]))
	}
	return attrs
}
