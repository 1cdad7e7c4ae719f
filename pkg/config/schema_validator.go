package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/domini04/bluestar/runtime/prompt/schema"
)

//go:embed schema/bluestarconfig.json
var manifestSchema string

const errorFormat = "  - %s"

// SchemaJSON returns the JSON schema configuration manifests must satisfy.
func SchemaJSON() string { return manifestSchema }

// ValidateWithSchema checks a YAML manifest against the embedded schema.
func ValidateWithSchema(yamlData []byte) (*schema.ValidationResult, error) {
	var data any
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}
	return schema.ValidateJSONAgainstLoader(jsonData, gojsonschema.NewStringLoader(manifestSchema))
}

// validateManifest turns schema violations into one error listing them all.
func validateManifest(yamlData []byte) error {
	result, err := ValidateWithSchema(yamlData)
	if err != nil {
		return err
	}
	if result.Valid {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		msgs = append(msgs, fmt.Sprintf(errorFormat, e.Error()))
	}
	return fmt.Errorf("%s manifest is invalid:\n%s", Kind, strings.Join(msgs, "\n"))
}
