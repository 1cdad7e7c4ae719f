// Package schema embeds the JSON schemas generated artifacts must satisfy and
// provides the shared gojsonschema validation helpers.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is one field-level schema violation.
type ValidationError struct {
	Field       string
	Description string
	Value       any
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationResult contains the results of JSON schema validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Summary joins the violations into one line, at most limit of them.
func (r *ValidationResult) Summary(limit int) string {
	if r == nil || r.Valid {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for i, e := range r.Errors {
		if limit > 0 && i == limit {
			parts = append(parts, fmt.Sprintf("and %d more", len(r.Errors)-limit))
			break
		}
		parts = append(parts, e.Field+": "+e.Description)
	}
	return strings.Join(parts, "; ")
}

// ValidateJSONAgainstLoader validates raw JSON bytes against a schema. It is
// the low-level entry point shared by the extraction adapter and pkg/config.
func ValidateJSONAgainstLoader(jsonData []byte, schemaLoader gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return ConvertResult(result), nil
}

// ConvertResult converts a gojsonschema result into a ValidationResult.
func ConvertResult(result *gojsonschema.Result) *ValidationResult {
	vr := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			vr.Errors = append(vr.Errors, ValidationError{
				Field:       e.Field(),
				Description: e.Description(),
				Value:       e.Value(),
			})
		}
	}
	return vr
}
