package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{
	EnvProvider, EnvModel, EnvGitHubToken, EnvGhostURL, EnvGhostKey, EnvNotionKey, EnvNotionDB,
	EnvNotionParent, EnvPublish, EnvMaxIterations, EnvOutputDir, EnvStore, EnvStoreURL, EnvLogLevel,
	"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GOOGLE_API_KEY",
}

// clearEnv blanks every variable ApplyEnv reads; blank values are ignored.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultProvider, c.LLM.Provider)
	assert.Equal(t, DefaultMaxIterations, c.Workflow.MaxIterations)
	assert.Equal(t, DefaultOutputDir, c.Output.Dir)
	assert.Equal(t, StoreSQLite, c.Store.Backend)
	assert.Equal(t, DefaultMaxRateLimitWait, c.GitHub.MaxRateLimitWait)
	assert.NoError(t, c.Validate())
}

func TestLoad_Manifest(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv(EnvNotionDB, "db-from-env")

	c, err := Load(filepath.Join("testdata", "bluestar.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "team-blog", c.Name)
	assert.Equal(t, "openai", c.LLM.Provider)
	assert.Equal(t, "sk-env", c.LLM.APIKey)
	assert.Equal(t, 90*time.Second, c.LLM.Timeout)
	require.NotNil(t, c.Generation.Synthesis.Temperature)
	assert.InDelta(t, 0.5, *c.Generation.Synthesis.Temperature, 1e-9)
	assert.Nil(t, c.Generation.Analysis.Temperature)
	assert.Equal(t, 2, c.Workflow.MaxIterations)
	assert.Equal(t, "notion", c.Workflow.Publish)
	assert.Equal(t, 2*time.Minute, c.Workflow.FetchTimeout)
	assert.Equal(t, time.Minute, c.GitHub.MaxRateLimitWait)
	assert.Equal(t, "db-from-env", c.Notion.DatabaseID, "environment wins over the manifest")
	assert.True(t, c.Notion.Enabled())
	assert.False(t, c.Ghost.Enabled())
	assert.Equal(t, LogFormatJSON, c.Logging.Format)
	assert.Equal(t, map[string]string{"env": "ci"}, c.Logging.CommonFields)
	assert.Equal(t, DefaultOutputDir, c.Output.Dir, "defaults fill the gaps")
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvProvider, "mock")
	t.Setenv(EnvMaxIterations, "5")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mock", c.LLM.Provider)
	assert.Equal(t, 5, c.Workflow.MaxIterations)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"wrong kind", "apiVersion: bluestar.dev/v1alpha1\nkind: Arena\nspec: {}\n", "kind"},
		{"unknown field", "apiVersion: bluestar.dev/v1alpha1\nkind: BluestarConfig\nspec:\n  llm:\n    temprature: 1\n", "temprature"},
		{"bad duration", "apiVersion: bluestar.dev/v1alpha1\nkind: BluestarConfig\nspec:\n  llm:\n    timeout: soon\n", "timeout"},
		{"unknown provider", "apiVersion: bluestar.dev/v1alpha1\nkind: BluestarConfig\nspec:\n  llm:\n    provider: llama\n", "provider"},
		{"zero iterations", "apiVersion: bluestar.dev/v1alpha1\nkind: BluestarConfig\nspec:\n  workflow:\n    maxIterations: 0\n", "maxIterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Parse([]byte("spec: [oops"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	c := &Config{}
	err := c.ApplyEnv(mapLookup(map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant",
		"OPENAI_API_KEY":    "sk-openai",
		EnvGitHubToken:      "ghp_x",
		EnvGhostURL:         "https://blog.example.com",
		EnvGhostKey:         "id:abcd",
		EnvPublish:          " ghost ",
		EnvMaxIterations:    "4",
		EnvLogLevel:         "DEBUG",
		EnvStore:            "memory",
		EnvNotionParent:     "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-ant", c.LLM.APIKey, "default provider's key")
	assert.Equal(t, "ghp_x", c.GitHub.Token)
	assert.True(t, c.Ghost.Enabled())
	assert.Equal(t, "ghost", c.Workflow.Publish)
	assert.Equal(t, 4, c.Workflow.MaxIterations)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, StoreMemory, c.Store.Backend)
	assert.Empty(t, c.Notion.ParentPageID)

	err = (&Config{}).ApplyEnv(mapLookup(map[string]string{EnvMaxIterations: "three"}))
	assert.ErrorContains(t, err, EnvMaxIterations)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.LLM.Provider = "llama"
	c.Workflow.MaxIterations = 0
	c.Store.Backend = StorePostgres
	c.Logging.Level = "loud"
	c.Ghost.URL = "https://blog.example.com"
	c.Notion.APIKey = "secret"

	err := c.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	for _, field := range []string{"llm.provider", "workflow.maxIterations", "store.url", "logging.level", "ghost.adminAPIKey", "notion"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestValidate_PublishIsPassedThrough(t *testing.T) {
	c := Default()
	c.Workflow.Publish = "medium"
	assert.NoError(t, c.Validate())
}

func TestWarnings(t *testing.T) {
	c := Default()
	c.Workflow.Publish = "ghost"
	w := c.Warnings()
	assert.Len(t, w, 3)
	assert.Contains(t, w[0], "ANTHROPIC_API_KEY")

	c.LLM.Provider = "mock"
	c.GitHub.Token = "x"
	c.Workflow.Publish = ""
	assert.Empty(t, c.Warnings())
}

func TestApplyFlags(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")

	c := Default()
	c.LLM.APIKey = "sk-ant"

	v := viper.New()
	v.Set(FlagProvider, "gemini")
	v.Set(FlagPublish, "local")
	v.Set(FlagMaxIterations, 1)
	v.Set(FlagVerbose, true)
	v.Set(FlagStore, "memory")
	require.NoError(t, c.ApplyFlags(v))

	assert.Equal(t, "gemini", c.LLM.Provider)
	assert.Equal(t, "g-key", c.LLM.APIKey, "key follows the provider")
	assert.Equal(t, "local", c.Workflow.Publish)
	assert.Equal(t, 1, c.Workflow.MaxIterations)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, StoreMemory, c.Store.Backend)

	v.Set(FlagMaxIterations, 0)
	assert.Error(t, c.ApplyFlags(v))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("BLUESTAR_TEST_NEW=from-file\nBLUESTAR_TEST_SET=from-file\n"), 0o600))

	t.Setenv("BLUESTAR_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("BLUESTAR_TEST_NEW"))
	t.Setenv("BLUESTAR_TEST_SET", "from-env")

	require.NoError(t, LoadEnv(file))
	assert.Equal(t, "from-file", os.Getenv("BLUESTAR_TEST_NEW"))
	assert.Equal(t, "from-env", os.Getenv("BLUESTAR_TEST_SET"), "existing variables are kept")

	t.Chdir(dir)
	assert.NoError(t, LoadEnv(), "a missing default .env is fine")
	assert.Error(t, LoadEnv("missing.env"))
}

func TestSchemaJSON(t *testing.T) {
	assert.Contains(t, SchemaJSON(), `"const": "BluestarConfig"`)
}
