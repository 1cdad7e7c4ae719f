package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read by LoadEnv when no file is named.
const DefaultEnvFile = ".env"

// Load reads the manifest at path, overlays the process environment,
// applies defaults and validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse validates a manifest against the schema and decodes its spec.
// Defaults are not applied.
func Parse(data []byte) (*Config, error) {
	if err := validateManifest(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg := m.Spec
	cfg.Name = m.Metadata.Name
	return &cfg, nil
}

// LoadEnv loads KEY=value files into the process environment without
// overriding variables that are already set. With no arguments it reads
// DefaultEnvFile and ignores its absence.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load(DefaultEnvFile)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(files...)
}
