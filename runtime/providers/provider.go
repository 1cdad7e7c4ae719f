// Package providers defines the Generator capability the extraction adapter
// calls, plus a registry of provider factories.
//
// Concrete providers live in subpackages and register themselves in init:
//
//	import _ "github.com/domini04/bluestar/runtime/providers/all"
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
)

// Request is one structured-generation call.
type Request struct {
	// Schema names the target schema, for logging and metrics.
	Schema      string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON-only response when it supports it.
	JSON bool
}

// Response is the raw text returned by a provider.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Generator submits a prompt to a model and returns its raw output.
// Failures are *pkgerrors.ContextualError values carrying a Kind.
type Generator interface {
	ID() string
	Model() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Spec holds the configuration needed to create a Generator.
type Spec struct {
	Type    string
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
	// Options carries provider-specific settings, such as the mock
	// provider's "responses" file.
	Options map[string]string
}

// Factory creates a Generator from a Spec that has defaults applied.
type Factory func(spec Spec) (Generator, error)

// Registration describes a provider type.
type Registration struct {
	Factory        Factory
	DefaultModel   string
	DefaultBaseURL string
	// RequiresKey makes New fail with a configuration error when Spec.APIKey is empty.
	RequiresKey bool
	// KeyEnv names the environment variable users set for the key, for messages.
	KeyEnv string
}

var (
	mu            sync.RWMutex
	registrations = map[string]Registration{}
)

// Register makes a provider type available to New.
func Register(providerType string, reg Registration) {
	mu.Lock()
	defer mu.Unlock()
	registrations[providerType] = reg
}

// Types lists the registered provider types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registrations))
	for t := range registrations {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// DefaultModel returns the default model of a registered provider type.
func DefaultModel(providerType string) string {
	mu.RLock()
	defer mu.RUnlock()
	return registrations[providerType].DefaultModel
}

// New creates a Generator, filling in the type's default model and base URL.
func New(spec Spec) (Generator, error) {
	mu.RLock()
	reg, ok := registrations[spec.Type]
	mu.RUnlock()
	if !ok {
		return nil, pkgerrors.Newf("providers", "New", "unsupported provider %q (available: %s)",
			spec.Type, strings.Join(Types(), ", ")).WithKind(pkgerrors.KindConfiguration)
	}

	if spec.Model == "" {
		spec.Model = reg.DefaultModel
	}
	if spec.BaseURL == "" {
		spec.BaseURL = reg.DefaultBaseURL
	}
	spec.BaseURL = strings.TrimSuffix(spec.BaseURL, "/")
	if reg.RequiresKey && spec.APIKey == "" {
		return nil, pkgerrors.Newf("providers", "New", "%s API key is not set (%s)", spec.Type, reg.KeyEnv).
			WithKind(pkgerrors.KindConfiguration)
	}
	if spec.Timeout <= 0 {
		spec.Timeout = DefaultTimeout
	}
	return reg.Factory(spec)
}

// DefaultTimeout bounds a provider HTTP call when Spec.Timeout is unset.
const DefaultTimeout = 120 * time.Second

// Errorf builds a provider error of the given kind.
func Errorf(component string, kind pkgerrors.Kind, format string, args ...any) error {
	return pkgerrors.Newf(component, operation, format, args...).WithKind(kind)
}

// Describe is a short "provider/model" label for logs.
func Describe(g Generator) string {
	return fmt.Sprintf("%s/%s", g.ID(), g.Model())
}
