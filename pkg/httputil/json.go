package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
)

const contentTypeJSON = "application/json"

// Call describes one JSON round trip.
type Call struct {
	// Component and Operation label the ContextualError returned on failure.
	Component string
	Operation string

	Method  string
	URL     string
	Headers map[string]string
	// Body is marshaled as JSON when non-nil.
	Body any
}

// DoJSON performs c and decodes a 2xx response into out (when out is non-nil).
// Non-2xx responses become errors whose Kind follows the status code; the
// Retry-After header, when present, is kept in Details["retry_after"].
func DoJSON(ctx context.Context, client *http.Client, c Call, out any) error {
	var body io.Reader
	if c.Body != nil {
		payload, err := json.Marshal(c.Body)
		if err != nil {
			return pkgerrors.New(c.Component, c.Operation, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, c.URL, body)
	if err != nil {
		return pkgerrors.New(c.Component, c.Operation, fmt.Errorf("create request: %w", err)).
			WithKind(pkgerrors.KindConfiguration)
	}
	if c.Body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	req.Header.Set("Accept", contentTypeJSON)
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return TransportError(c.Component, c.Operation, err)
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		ce := pkgerrors.New(c.Component, c.Operation, StatusError(resp)).
			WithStatusCode(resp.StatusCode).
			WithKind(pkgerrors.KindForStatus(resp.StatusCode))
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			ce = ce.WithDetails(map[string]any{"retry_after": ra})
		}
		return ce
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.New(c.Component, c.Operation, fmt.Errorf("decode response: %w", err)).
			WithKind(pkgerrors.KindProvider)
	}
	return nil
}

// TransportError wraps a failed round trip, marking deadlines as timeouts.
func TransportError(component, operation string, err error) error {
	kind := pkgerrors.KindProvider
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = pkgerrors.KindTimeout
	}
	return pkgerrors.New(component, operation, err).WithKind(kind)
}
