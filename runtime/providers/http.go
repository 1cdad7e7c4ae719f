package providers

import (
	"context"
	"net/http"

	"github.com/domini04/bluestar/pkg/httputil"
)

const operation = "Generate"

// PostJSON sends body as JSON to url and decodes a 2xx response into out.
// Non-2xx responses become errors whose Kind follows the status code.
func PostJSON(ctx context.Context, client *http.Client, component, url string, headers map[string]string, body, out any) error {
	return httputil.DoJSON(ctx, client, httputil.Call{
		Component: component,
		Operation: operation,
		Method:    http.MethodPost,
		URL:       url,
		Headers:   headers,
		Body:      body,
	}, out)
}

// TransportError wraps a failed generator call, marking deadlines as timeouts.
func TransportError(component string, err error) error {
	return httputil.TransportError(component, operation, err)
}
