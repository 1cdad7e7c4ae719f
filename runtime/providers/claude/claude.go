// Package claude provides the Anthropic Messages API generator.
package claude

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

// HTTP constants
const (
	providerID            = "claude"
	defaultModel          = "claude-opus-4-20250514"
	defaultBaseURL        = "https://api.anthropic.com"
	anthropicAPIHost      = "api.anthropic.com"
	anthropicVersionKey   = "Anthropic-Version"
	anthropicVersionValue = "2023-06-01"
	apiKeyHeader          = "X-API-Key"
	defaultMaxTokens      = 4096
)

func init() {
	providers.Register(providerID, providers.Registration{
		Factory:        func(spec providers.Spec) (providers.Generator, error) { return NewProvider(spec), nil },
		DefaultModel:   defaultModel,
		DefaultBaseURL: defaultBaseURL,
		RequiresKey:    true,
		KeyEnv:         "ANTHROPIC_API_KEY",
	})
}

// normalizeBaseURL adds /v1 to the Anthropic host. Other hosts (test
// servers, proxies) are left unchanged.
func normalizeBaseURL(baseURL string) string {
	if strings.Contains(baseURL, anthropicAPIHost) && !strings.Contains(baseURL, "/v1") {
		return strings.TrimSuffix(baseURL, "/") + "/v1"
	}
	return baseURL
}

// Provider calls POST {baseURL}/messages.
type Provider struct {
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
	log     *slog.Logger
}

// NewProvider creates a Claude generator from spec.
func NewProvider(spec providers.Spec) *Provider {
	return &Provider{
		model:   spec.Model,
		baseURL: normalizeBaseURL(spec.BaseURL),
		apiKey:  spec.APIKey,
		client:  httputil.NewHTTPClient(spec.Timeout),
		log:     logger.OrDefault(spec.Logger),
	}
}

// ID returns the provider type.
func (p *Provider) ID() string { return providerID }

// Model returns the model name.
func (p *Provider) Model() string { return p.model }

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends one message and returns the first text block.
func (p *Provider) Generate(ctx context.Context, req providers.Request) (*providers.Response, error) {
	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{Provider: providerID, Model: p.model})
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	// The Messages API has no JSON mode; the prompt carries the schema and
	// a prefilled brace keeps the reply to a single object.
	messages := []claudeMessage{{Role: "user", Content: req.Prompt}}
	if req.JSON {
		messages = append(messages, claudeMessage{Role: "assistant", Content: "{"})
	}
	body := claudeRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    messages,
		Temperature: req.Temperature,
	}

	logger.LLMCall(ctx, p.log, providerID, p.model, req.Temperature, "schema", req.Schema)

	var out claudeResponse
	headers := map[string]string{
		apiKeyHeader:        p.apiKey,
		anthropicVersionKey: anthropicVersionValue,
	}
	if err := providers.PostJSON(ctx, p.client, providerID, p.baseURL+"/messages", headers, body, &out); err != nil {
		logger.LLMError(ctx, p.log, providerID, p.model, err)
		return nil, err
	}

	if out.Error != nil {
		kind := pkgerrors.KindProvider
		if out.Error.Type == "rate_limit_error" {
			kind = pkgerrors.KindRateLimited
		}
		return nil, providers.Errorf(providerID, kind, "claude API error: %s", out.Error.Message)
	}

	var text string
	for _, c := range out.Content {
		if c.Type == "text" {
			text = c.Text
			break
		}
	}
	if text == "" {
		return nil, providers.Errorf(providerID, pkgerrors.KindProvider, "no text content found in response")
	}
	if req.JSON && !strings.HasPrefix(strings.TrimSpace(text), "{") {
		text = "{" + text
	}

	logger.LLMResponse(ctx, p.log, providerID, p.model, out.Usage.InputTokens, out.Usage.OutputTokens,
		"stop_reason", out.StopReason)

	return &providers.Response{
		Content:      text,
		Model:        p.model,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		Latency:      time.Since(start),
	}, nil
}
