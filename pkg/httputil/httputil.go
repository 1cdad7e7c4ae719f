// Package httputil provides shared HTTP client construction for BlueStar's
// collaborators (GitHub, model providers, Ghost, Notion). Every client is
// instrumented with OpenTelemetry so outbound calls appear under the stage span
// that issued them.
package httputil

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Standard timeout defaults used across the project.
const (
	// DefaultProviderTimeout is the HTTP timeout for model provider calls.
	DefaultProviderTimeout = 60 * time.Second

	// DefaultAPITimeout is the HTTP timeout for REST APIs such as GitHub,
	// Ghost and Notion.
	DefaultAPITimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response body is kept.
	maxErrorBody = 2048
)

// NewHTTPClient returns an *http.Client with the given timeout and an
// otelhttp-instrumented transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ErrorBody reads a bounded, trimmed copy of an error response body.
func ErrorBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(data))
}

// StatusError formats a non-2xx response as an error carrying its body.
func StatusError(resp *http.Response) error {
	body := ErrorBody(resp)
	if body == "" {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return fmt.Errorf("unexpected status %s: %s", resp.Status, body)
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}
