package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/internal/httpheaders"
)

// doJSON issues a JSON request/response HTTP call with a bearer
// Authorization header, under the given timeout, decoding the body into
// out. OpenAI uses this form; Google authenticates via query string
// (passed with an empty authHeader) and Anthropic via custom headers
// (doJSONWithHeaders).
func doJSON(ctx context.Context, timeout time.Duration, method, url, authHeader string, body any, out any) error {
	var headers map[string]string
	if authHeader != "" {
		headers = httpheaders.Set(headers, "Authorization", authHeader)
	}
	return doJSONWithHeaders(ctx, timeout, method, url, headers, body, out)
}

// doJSONWithHeaders is the shared HTTP transport for every provider
// client: it encodes body as JSON, attaches arbitrary headers, and maps
// non-2xx responses onto the sentinel errors the sync engine's retry
// policy and error taxonomy recognize (spec.md §7).
func doJSONWithHeaders(ctx context.Context, timeout time.Duration, method, url string, headers map[string]string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClientFor(timeout).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("request timed out: %w", ctx.Err())
		}
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", errUnauthorized, string(data))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return newRateLimitError(resp.Header.Get("Retry-After"), string(data))
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d: %s", errUpstream5xx, resp.StatusCode, string(data))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d: %s", errUpstream4xx, resp.StatusCode, string(data))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
