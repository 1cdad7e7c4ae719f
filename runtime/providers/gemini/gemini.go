// Package gemini provides the Google Gemini generateContent generator.
package gemini

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/pkg/httputil"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/providers"
)

const (
	providerID     = "gemini"
	defaultModel   = "gemini-2.5-pro-preview-06-05"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	apiKeyHeader   = "X-Goog-Api-Key"
)

func init() {
	providers.Register(providerID, providers.Registration{
		Factory:        func(spec providers.Spec) (providers.Generator, error) { return NewProvider(spec), nil },
		DefaultModel:   defaultModel,
		DefaultBaseURL: defaultBaseURL,
		RequiresKey:    true,
		KeyEnv:         "GOOGLE_API_KEY",
	})
}

// Provider calls POST {baseURL}/v1beta/models/{model}:generateContent.
// The key travels in a header so it never appears in error URLs.
type Provider struct {
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
	log     *slog.Logger
}

// NewProvider creates a Gemini generator from spec.
func NewProvider(spec providers.Spec) *Provider {
	return &Provider{
		model:   spec.Model,
		baseURL: spec.BaseURL,
		apiKey:  spec.APIKey,
		client:  httputil.NewHTTPClient(spec.Timeout),
		log:     logger.OrDefault(spec.Logger),
	}
}

// ID returns the provider type.
func (p *Provider) ID() string { return providerID }

// Model returns the model name.
func (p *Provider) Model() string { return p.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends one generateContent call.
func (p *Provider) Generate(ctx context.Context, req providers.Request) (*providers.Response, error) {
	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{Provider: providerID, Model: p.model})
	start := time.Now()

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.JSON {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	logger.LLMCall(ctx, p.log, providerID, p.model, req.Temperature, "schema", req.Schema)

	url := p.baseURL + "/v1beta/models/" + p.model + ":generateContent"
	var out generateResponse
	if err := providers.PostJSON(ctx, p.client, providerID, url, map[string]string{apiKeyHeader: p.apiKey}, body, &out); err != nil {
		logger.LLMError(ctx, p.log, providerID, p.model, err)
		return nil, err
	}

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, providers.Errorf(providerID, pkgerrors.KindProvider, "prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return nil, providers.Errorf(providerID, pkgerrors.KindProvider, "no candidates in response")
	}

	var sb strings.Builder
	for _, pt := range out.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	if sb.Len() == 0 {
		return nil, providers.Errorf(providerID, pkgerrors.KindProvider,
			"empty response (finish reason %s)", out.Candidates[0].FinishReason)
	}

	logger.LLMResponse(ctx, p.log, providerID, p.model,
		out.UsageMetadata.PromptTokenCount, out.UsageMetadata.CandidatesTokenCount,
		"finish_reason", out.Candidates[0].FinishReason)

	return &providers.Response{
		Content:      sb.String(),
		Model:        p.model,
		InputTokens:  out.UsageMetadata.PromptTokenCount,
		OutputTokens: out.UsageMetadata.CandidatesTokenCount,
		Latency:      time.Since(start),
	}, nil
}
