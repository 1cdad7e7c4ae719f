package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv.
const (
	EnvProvider      = "BLUESTAR_LLM_PROVIDER"
	EnvModel         = "BLUESTAR_LLM_MODEL"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvGhostURL      = "GHOST_API_URL"
	EnvGhostKey      = "GHOST_ADMIN_API_KEY"
	EnvNotionKey     = "NOTION_API_KEY"
	EnvNotionDB      = "NOTION_DATABASE_ID"
	EnvNotionParent  = "NOTION_PARENT_PAGE_ID"
	EnvPublish       = "BLUESTAR_PUBLISH"
	EnvMaxIterations = "BLUESTAR_MAX_ITERATIONS"
	EnvOutputDir     = "BLUESTAR_OUTPUT_DIR"
	EnvStore         = "BLUESTAR_STORE"
	EnvStoreURL      = "BLUESTAR_STORE_URL"
	EnvLogLevel      = "LOG_LEVEL"
)

var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
	"gemini": "GOOGLE_API_KEY",
}

// APIKeyEnv names the environment variable holding provider's API key, or
// "" for providers that need none.
func APIKeyEnv(provider string) string { return providerKeyEnv[provider] }

// ApplyEnv overlays environment values on c. Set variables win over the
// manifest; blank ones are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	set := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	set(EnvProvider, &c.LLM.Provider)
	set(EnvModel, &c.LLM.Model)
	provider := c.LLM.Provider
	if provider == "" {
		provider = DefaultProvider
	}
	if env := APIKeyEnv(provider); env != "" {
		set(env, &c.LLM.APIKey)
	}

	set(EnvGitHubToken, &c.GitHub.Token)
	set(EnvGhostURL, &c.Ghost.URL)
	set(EnvGhostKey, &c.Ghost.AdminAPIKey)
	set(EnvNotionKey, &c.Notion.APIKey)
	set(EnvNotionDB, &c.Notion.DatabaseID)
	set(EnvNotionParent, &c.Notion.ParentPageID)
	set(EnvPublish, &c.Workflow.Publish)
	set(EnvOutputDir, &c.Output.Dir)
	set(EnvStore, &c.Store.Backend)
	set(EnvStoreURL, &c.Store.URL)
	set(EnvLogLevel, &c.Logging.Level)

	if v, ok := get(EnvMaxIterations); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", EnvMaxIterations, v)
		}
		c.Workflow.MaxIterations = n
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return nil
}
