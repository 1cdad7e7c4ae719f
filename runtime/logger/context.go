package logger

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys lifted into every log record by ContextHandler.
const (
	// ContextKeyRunID identifies the workflow run.
	ContextKeyRunID contextKey = "run_id"

	// ContextKeyStage identifies the workflow stage being executed.
	ContextKeyStage contextKey = "stage"

	// ContextKeyRepo identifies the repository under analysis.
	ContextKeyRepo contextKey = "repo"

	// ContextKeyCommit identifies the commit under analysis.
	ContextKeyCommit contextKey = "commit"

	// ContextKeyProvider identifies the model provider.
	ContextKeyProvider contextKey = "provider"

	// ContextKeyModel identifies the model.
	ContextKeyModel contextKey = "model"

	// ContextKeySink identifies the publishing sink.
	ContextKeySink contextKey = "sink"
)

var allContextKeys = []contextKey{
	ContextKeyRunID,
	ContextKeyStage,
	ContextKeyRepo,
	ContextKeyCommit,
	ContextKeyProvider,
	ContextKeyModel,
	ContextKeySink,
}

// WithRunID returns a new context with the run ID set.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// WithStage returns a new context with the stage name set.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ContextKeyStage, stage)
}

// WithRepo returns a new context with the repository set.
func WithRepo(ctx context.Context, repo string) context.Context {
	return context.WithValue(ctx, ContextKeyRepo, repo)
}

// WithCommit returns a new context with the commit SHA set.
func WithCommit(ctx context.Context, commit string) context.Context {
	return context.WithValue(ctx, ContextKeyCommit, commit)
}

// WithProvider returns a new context with the provider name set.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ContextKeyProvider, provider)
}

// WithModel returns a new context with the model name set.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ContextKeyModel, model)
}

// WithSink returns a new context with the sink name set.
func WithSink(ctx context.Context, sink string) context.Context {
	return context.WithValue(ctx, ContextKeySink, sink)
}

// LoggingFields holds the standard logging context fields.
type LoggingFields struct {
	RunID    string
	Stage    string
	Repo     string
	Commit   string
	Provider string
	Model    string
	Sink     string
}

// WithLoggingContext sets every non-empty field on ctx.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	set := func(key contextKey, v string) {
		if v != "" {
			ctx = context.WithValue(ctx, key, v)
		}
	}
	set(ContextKeyRunID, fields.RunID)
	set(ContextKeyStage, fields.Stage)
	set(ContextKeyRepo, fields.Repo)
	set(ContextKeyCommit, fields.Commit)
	set(ContextKeyProvider, fields.Provider)
	set(ContextKeyModel, fields.Model)
	set(ContextKeySink, fields.Sink)
	return ctx
}

// ExtractLoggingFields reads the logging fields present on ctx.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	get := func(key contextKey) string {
		s, _ := ctx.Value(key).(string)
		return s
	}
	return LoggingFields{
		RunID:    get(ContextKeyRunID),
		Stage:    get(ContextKeyStage),
		Repo:     get(ContextKeyRepo),
		Commit:   get(ContextKeyCommit),
		Provider: get(ContextKeyProvider),
		Model:    get(ContextKeyModel),
		Sink:     get(ContextKeySink),
	}
}
