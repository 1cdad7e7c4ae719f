package config

import (
	"os"

	"github.com/spf13/viper"
)

// Flag keys understood by ApplyFlags. The CLI binds its flags under these
// names.
const (
	FlagProvider      = "provider"
	FlagModel         = "model"
	FlagPublish       = "publish"
	FlagMaxIterations = "max-iterations"
	FlagOutputDir     = "output-dir"
	FlagStore         = "store"
	FlagStoreURL      = "store-url"
	FlagOTLPEndpoint  = "otlp-endpoint"
	FlagMetricsAddr   = "metrics-addr"
	FlagVerbose       = "verbose"
	FlagLogFormat     = "log-format"
	FlagPromptsDir    = "prompts-dir"
)

// ApplyFlags overlays explicitly set flags on c and re-validates. Flags win
// over both the manifest and the environment.
func (c *Config) ApplyFlags(v *viper.Viper) error {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			if s := v.GetString(key); s != "" {
				*dst = s
			}
		}
	}
	prev := c.LLM.Provider
	str(FlagProvider, &c.LLM.Provider)
	if c.LLM.Provider != prev {
		// The key that was resolved belonged to the previous provider.
		c.LLM.APIKey = ""
		if env := APIKeyEnv(c.LLM.Provider); env != "" {
			c.LLM.APIKey = os.Getenv(env)
		}
	}
	str(FlagModel, &c.LLM.Model)
	str(FlagPublish, &c.Workflow.Publish)
	str(FlagOutputDir, &c.Output.Dir)
	str(FlagStore, &c.Store.Backend)
	str(FlagStoreURL, &c.Store.URL)
	str(FlagOTLPEndpoint, &c.Telemetry.OTLPEndpoint)
	str(FlagMetricsAddr, &c.Telemetry.MetricsAddr)
	str(FlagLogFormat, &c.Logging.Format)
	str(FlagPromptsDir, &c.Workflow.PromptsDir)

	if v.IsSet(FlagMaxIterations) {
		c.Workflow.MaxIterations = v.GetInt(FlagMaxIterations)
	}
	if v.GetBool(FlagVerbose) {
		c.Logging.Level = "debug"
	}
	return c.Validate()
}
