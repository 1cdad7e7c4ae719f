package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Providers lists the generator types the configuration accepts.
var Providers = []string{"openai", "claude", "gemini", "mock"}

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return "config validation error: " + e.Field + ": " + e.Message + " (got: " + e.Value + ")"
	}
	return "config validation error: " + e.Field + ": " + e.Message
}

// Validate checks the values that the schema cannot, such as those coming
// from the environment. All problems are returned joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, msg, value string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg, Value: value})
	}

	if !slices.Contains(Providers, c.LLM.Provider) {
		add("llm.provider", "must be one of: "+strings.Join(Providers, ", "), c.LLM.Provider)
	}
	if c.Workflow.MaxIterations < 1 {
		add("workflow.maxIterations", "must be at least 1", fmt.Sprint(c.Workflow.MaxIterations))
	}
	switch c.Store.Backend {
	case StoreMemory, StoreSQLite, StoreRedis:
	case StorePostgres:
		if c.Store.URL == "" {
			add("store.url", "is required for the postgres backend", "")
		}
	default:
		add("store.backend", "must be one of: memory, redis, sqlite, postgres", c.Store.Backend)
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		add("logging.level", "must be one of: "+strings.Join(logLevels, ", "), c.Logging.Level)
	}
	if c.Logging.Format != LogFormatJSON && c.Logging.Format != LogFormatText {
		add("logging.format", "must be one of: json, text", c.Logging.Format)
	}
	if c.Ghost.URL != "" && c.Ghost.AdminAPIKey == "" {
		add("ghost.adminAPIKey", "is required when ghost.url is set", "")
	}
	if c.Notion.APIKey != "" && c.Notion.DatabaseID == "" && c.Notion.ParentPageID == "" {
		add("notion", "a databaseID or parentPageID is required with an apiKey", "")
	}
	return errors.Join(errs...)
}

// Warnings reports settings that are valid but probably not intended.
func (c *Config) Warnings() []string {
	var w []string
	if env := APIKeyEnv(c.LLM.Provider); env != "" && c.LLM.APIKey == "" {
		w = append(w, fmt.Sprintf("no API key for %s; set %s", c.LLM.Provider, env))
	}
	if c.GitHub.Token == "" {
		w = append(w, "GITHUB_TOKEN is not set; requests are anonymous and heavily rate limited")
	}
	if c.Workflow.Publish == "ghost" && !c.Ghost.Enabled() {
		w = append(w, "publish is ghost but Ghost is not configured")
	}
	if c.Workflow.Publish == "notion" && !c.Notion.Enabled() {
		w = append(w, "publish is notion but Notion is not configured")
	}
	return w
}
