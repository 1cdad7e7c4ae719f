// Package mock provides a Generator that answers from a script instead of
// calling a model. It backs offline runs and the workflow tests.
package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/providers"
)

const (
	providerID   = "mock"
	defaultModel = "mock-model"

	// OptionResponses names a YAML script file in providers.Spec.Options.
	OptionResponses = "responses"
)

func init() {
	providers.Register(providerID, providers.Registration{
		Factory: func(spec providers.Spec) (providers.Generator, error) {
			var repo Repository = NewScriptRepository(Script{})
			if path := spec.Options[OptionResponses]; path != "" {
				r, err := LoadScript(path)
				if err != nil {
					return nil, pkgerrors.New(providerID, "New", err).WithKind(pkgerrors.KindConfiguration)
				}
				repo = r
			}
			p := NewProviderWithRepository(spec.Model, repo)
			p.log = logger.OrDefault(spec.Logger)
			return p, nil
		},
		DefaultModel: defaultModel,
	})
}

// Provider replays turns from a Repository and records every request.
type Provider struct {
	model string
	repo  Repository
	log   *slog.Logger // nil logs to logger.DefaultLogger

	mu       sync.Mutex
	calls    map[string]int
	requests []providers.Request
}

// NewProvider returns a mock that replays turns in order, then falls back
// to the canned responses.
func NewProvider(turns ...Turn) *Provider {
	return NewProviderWithRepository(defaultModel, NewQueueRepository(turns...))
}

// NewProviderWithRepository returns a mock backed by repo.
func NewProviderWithRepository(model string, repo Repository) *Provider {
	if model == "" {
		model = defaultModel
	}
	return &Provider{
		model: model,
		repo:  repo,
		calls: map[string]int{},
	}
}

// ID returns the provider type.
func (p *Provider) ID() string { return providerID }

// Model returns the model name.
func (p *Provider) Model() string { return p.model }

// Requests returns a copy of every request received so far.
func (p *Provider) Requests() []providers.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]providers.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Calls returns the number of requests received for schema.
func (p *Provider) Calls(schema string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[schema]
}

// Generate implements providers.Generator.
func (p *Provider) Generate(ctx context.Context, req providers.Request) (*providers.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, providers.TransportError(providerID, err)
	}

	p.mu.Lock()
	p.calls[req.Schema]++
	call := p.calls[req.Schema]
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	start := time.Now()
	logger.LLMCall(ctx, p.log, providerID, p.model, req.Temperature, "schema", req.Schema, "call", call)

	turn, err := p.repo.Turn(ctx, ResponseParams{Schema: req.Schema, Call: call, Model: p.model})
	if err != nil {
		return nil, providers.Errorf(providerID, pkgerrors.KindProvider, "%v", err)
	}
	if turn.Error != "" {
		kind := pkgerrors.Kind(turn.Kind)
		if kind == pkgerrors.KindUnknown {
			kind = pkgerrors.KindProvider
		}
		err := providers.Errorf(providerID, kind, "%s", turn.Error)
		logger.LLMError(ctx, p.log, providerID, p.model, err)
		return nil, err
	}

	in, out := len(req.System+req.Prompt)/4, len(turn.Content)/4
	logger.LLMResponse(ctx, p.log, providerID, p.model, in, out)
	return &providers.Response{
		Content:      turn.Content,
		Model:        p.model,
		InputTokens:  in,
		OutputTokens: out,
		Latency:      time.Since(start),
	}, nil
}
