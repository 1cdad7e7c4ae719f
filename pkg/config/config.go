// Package config loads BlueStar's configuration.
//
// The configuration is a K8s-style manifest:
//
//	apiVersion: bluestar.dev/v1alpha1
//	kind: BluestarConfig
//	metadata:
//	  name: team-blog
//	spec:
//	  llm:
//	    provider: claude
//	  workflow:
//	    maxIterations: 3
//	  ghost:
//	    url: https://blog.example.com
//
// Load validates the file against an embedded JSON schema, overlays the
// environment (optionally read from a .env file first), applies defaults and
// validates the result. The resulting *Config is a value: build it once and
// pass it to the constructors that need it.
package config

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Manifest identity.
const (
	APIVersion = "bluestar.dev/v1alpha1"
	Kind       = "BluestarConfig"
)

// Defaults.
const (
	DefaultProvider         = "claude"
	DefaultMaxIterations    = 3
	DefaultOutputDir        = "output"
	DefaultStoreBackend     = "sqlite"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultServiceName      = "bluestar"
	DefaultMaxRateLimitWait = 300 * time.Second
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Manifest is the on-disk document.
type Manifest struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Config            `yaml:"spec"`
}

// Config is the complete runtime configuration.
type Config struct {
	LLM        LLMSpec        `yaml:"llm"`
	Generation GenerationSpec `yaml:"generation,omitempty"`
	Workflow   WorkflowSpec   `yaml:"workflow"`
	GitHub     GitHubSpec     `yaml:"github,omitempty"`
	Ghost      GhostSpec      `yaml:"ghost,omitempty"`
	Notion     NotionSpec     `yaml:"notion,omitempty"`
	Output     OutputSpec     `yaml:"output,omitempty"`
	Store      StoreSpec      `yaml:"store,omitempty"`
	Logging    LoggingSpec    `yaml:"logging,omitempty"`
	Telemetry  TelemetrySpec  `yaml:"telemetry,omitempty"`

	// Name is metadata.name of the loaded manifest, if any.
	Name string `yaml:"-"`
}

// LLMSpec selects the generator.
type LLMSpec struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model,omitempty"`
	BaseURL  string        `yaml:"baseURL,omitempty"`
	APIKey   string        `yaml:"apiKey,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	// Options are provider-specific, e.g. the mock provider's responses file.
	Options map[string]string `yaml:"options,omitempty"`
}

// GenerationSpec overrides per-stage generation parameters. Zero fields keep
// the built-in values.
type GenerationSpec struct {
	Analysis   GenerationParams `yaml:"analysis,omitempty"`
	Synthesis  GenerationParams `yaml:"synthesis,omitempty"`
	Refinement GenerationParams `yaml:"refinement,omitempty"`
}

// GenerationParams are the sampling parameters of one model-backed stage.
type GenerationParams struct {
	Temperature *float64      `yaml:"temperature,omitempty"`
	MaxTokens   int           `yaml:"maxTokens,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// WorkflowSpec configures the review loop.
type WorkflowSpec struct {
	MaxIterations int `yaml:"maxIterations"`
	// Publish pre-supplies the publishing choice. It is passed through
	// unvalidated: an unrecognized token ends the run without publishing.
	Publish string `yaml:"publish,omitempty"`
	// PromptsDir overrides the built-in prompt manifests task by task.
	PromptsDir     string        `yaml:"promptsDir,omitempty"`
	FetchTimeout   time.Duration `yaml:"fetchTimeout,omitempty"`
	PublishTimeout time.Duration `yaml:"publishTimeout,omitempty"`
}

// GitHubSpec configures the commit fetcher.
type GitHubSpec struct {
	Token             string        `yaml:"token,omitempty"`
	BaseURL           string        `yaml:"baseURL,omitempty"`
	MaxRateLimitWait  time.Duration `yaml:"maxRateLimitWait,omitempty"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond,omitempty"`
}

// GhostSpec configures the Ghost sink. It is enabled when both fields are set.
type GhostSpec struct {
	URL         string `yaml:"url,omitempty"`
	AdminAPIKey string `yaml:"adminAPIKey,omitempty"`
}

// Enabled reports whether the sink can be built.
func (g GhostSpec) Enabled() bool { return g.URL != "" && g.AdminAPIKey != "" }

// NotionSpec configures the Notion sink. It is enabled with a key and either
// a database or a parent page.
type NotionSpec struct {
	APIKey       string `yaml:"apiKey,omitempty"`
	DatabaseID   string `yaml:"databaseID,omitempty"`
	ParentPageID string `yaml:"parentPageID,omitempty"`
}

// Enabled reports whether the sink can be built.
func (n NotionSpec) Enabled() bool {
	return n.APIKey != "" && (n.DatabaseID != "" || n.ParentPageID != "")
}

// OutputSpec configures the local sink.
type OutputSpec struct {
	Dir string `yaml:"dir,omitempty"`
}

// StoreSpec selects the checkpoint store.
type StoreSpec struct {
	Backend string `yaml:"backend,omitempty"`
	URL     string `yaml:"url,omitempty"`
}

// LoggingSpec mirrors logger.Config.
type LoggingSpec struct {
	Level        string            `yaml:"level,omitempty"`
	Format       string            `yaml:"format,omitempty"`
	CommonFields map[string]string `yaml:"commonFields,omitempty"`
}

// TelemetrySpec configures tracing and the metrics endpoint. Both are off
// when empty.
type TelemetrySpec struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
	ServiceName  string `yaml:"serviceName,omitempty"`
	MetricsAddr  string `yaml:"metricsAddr,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.Workflow.MaxIterations == 0 {
		c.Workflow.MaxIterations = DefaultMaxIterations
	}
	if c.GitHub.MaxRateLimitWait == 0 {
		c.GitHub.MaxRateLimitWait = DefaultMaxRateLimitWait
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}
