// Package template substitutes {{variable}} placeholders in prompt templates.
//
// Substitution is a single pass over the template text: values are inserted
// verbatim and never re-scanned, so diffs and READMEs that contain braces
// survive unchanged. Any placeholder without a value is an error.
package template

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// ErrUnresolved is returned when a template references a variable that has no value.
var ErrUnresolved = errors.New("unresolved template placeholders")

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Renderer handles variable substitution in templates.
type Renderer struct{}

// NewRenderer creates a new template renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render replaces every {{name}} in templateText with vars[name].
func (r *Renderer) Render(templateText string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(templateText, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %v", ErrUnresolved, slices.Compact(missing))
	}
	return out, nil
}

// Placeholders lists the distinct variable names referenced by templateText, sorted.
func Placeholders(templateText string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(templateText, -1) {
		names = append(names, m[1])
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// ValidateRequiredVars checks that all required variables are provided and non-empty.
func (r *Renderer) ValidateRequiredVars(requiredVars []string, vars map[string]string) error {
	var missing []string
	for _, required := range requiredVars {
		if strings.TrimSpace(vars[required]) == "" {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required variables: %v", missing)
	}
	return nil
}

// MergeVars merges variable maps; later maps take precedence.
func (r *Renderer) MergeVars(varMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, vars := range varMaps {
		maps.Copy(result, vars)
	}
	return result
}
