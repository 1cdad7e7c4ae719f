package schema

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names.
const (
	Analysis = "analysis"
	Document = "document"
)

//go:embed analysis.schema.json
var analysisSchema string

//go:embed document.schema.json
var documentSchema string

var sources = map[string]string{
	Analysis: analysisSchema,
	Document: documentSchema,
}

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

// Names lists the embedded schemas, sorted.
func Names() []string {
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Source returns the raw JSON text of a schema, for inclusion in prompts.
func Source(name string) (string, error) {
	s, ok := sources[name]
	if !ok {
		return "", fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// Loader returns a gojsonschema loader for a named schema.
func Loader(name string) (gojsonschema.JSONLoader, error) {
	s, err := Source(name)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewStringLoader(s), nil
}

// Validate checks data against a named schema. Schemas are compiled once.
func Validate(name string, data []byte) (*ValidationResult, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*gojsonschema.Schema, len(sources))
		for n, s := range sources {
			sc, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", n, err)
				return
			}
			compiled[n] = sc
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	sc, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	result, err := sc.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return ConvertResult(result), nil
}
