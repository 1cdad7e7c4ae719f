// Package openai provides the OpenAI chat completions generator.
package openai

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/pkg/httputil"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/providers"
)

const (
	providerID     = "openai"
	defaultModel   = "gpt-4.1-2025-04-14"
	defaultBaseURL = "https://api.openai.com/v1"
)

func init() {
	providers.Register(providerID, providers.Registration{
		Factory:        func(spec providers.Spec) (providers.Generator, error) { return NewProvider(spec), nil },
		DefaultModel:   defaultModel,
		DefaultBaseURL: defaultBaseURL,
		RequiresKey:    true,
		KeyEnv:         "OPENAI_API_KEY",
	})
}

// Provider calls POST {baseURL}/chat/completions.
type Provider struct {
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
	log     *slog.Logger
}

// NewProvider creates an OpenAI generator from spec.
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

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	Temperature         float64         `json:"temperature"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends one chat completion.
func (p *Provider) Generate(ctx context.Context, req providers.Request) (*providers.Response, error) {
	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{Provider: providerID, Model: p.model})
	start := time.Now()

	body := chatRequest{
		Model:               p.model,
		Temperature:         req.Temperature,
		MaxCompletionTokens: req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	logger.LLMCall(ctx, p.log, providerID, p.model, req.Temperature, "schema", req.Schema)

	var out chatResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := providers.PostJSON(ctx, p.client, providerID, p.baseURL+"/chat/completions", headers, body, &out); err != nil {
		logger.LLMError(ctx, p.log, providerID, p.model, err)
		return nil, err
	}

	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, providers.Errorf(providerID, pkgerrors.KindProvider, "no content in response")
	}

	logger.LLMResponse(ctx, p.log, providerID, p.model, out.Usage.PromptTokens, out.Usage.CompletionTokens,
		"finish_reason", out.Choices[0].FinishReason)

	return &providers.Response{
		Content:      out.Choices[0].Message.Content,
		Model:        p.model,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		Latency:      time.Since(start),
	}, nil
}
