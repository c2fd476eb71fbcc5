package apix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Param is a single query parameter. Parameters are kept as an ordered
// slice rather than a map so they are appended to the URL in the order
// the caller supplied them.
type Param struct {
	Key   string
	Value string
}

// RequestDescriptor describes one logical API request. It is built per
// call and must not be mutated after being handed to the client.
type RequestDescriptor struct {
	Endpoint string // e.g. "/events/nearby"; appended after the version prefix
	Method   string // HTTP verb; defaults to GET when empty
	Headers  map[string]string
	Params   []Param
	Body     any // JSON-encoded when non-nil

	// Timeout bounds a single network attempt. Zero means the client
	// default.
	Timeout time.Duration

	// MaxRetries overrides the client's retry budget when >= 0. A negative
	// value means "use the client default".
	MaxRetries int
}

// Response is the outcome of a successful exchange (any 2xx status).
type Response struct {
	Status int
	Header http.Header

	// Body is the raw response body. For JSON responses use Decode;
	// for anything else Text returns it as a string.
	Body []byte

	json bool
}

// IsJSON reports whether the response declared a JSON content type.
func (r *Response) IsJSON() bool { return r.json }

// Text returns the raw body as a string. Intended for non-JSON responses.
func (r *Response) Text() string { return string(r.Body) }

// Decode unmarshals a JSON response body into target.
func (r *Response) Decode(target any) error {
	if !r.json {
		return fmt.Errorf("apix: response is not JSON (content-type %q)", r.Header.Get("Content-Type"))
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("apix: failed to decode response: %w", err)
	}
	return nil
}

// pipeline issues exactly one HTTP attempt for a descriptor. It holds no
// mutable state; everything it needs arrives as arguments or read-only
// config.
type pipeline struct {
	httpClient *http.Client
	cfg        Config
}

// buildURL assembles base + /api/<version> + endpoint, appending query
// parameters in their supplied order.
func (p *pipeline) buildURL(desc *RequestDescriptor) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(p.cfg.BaseURL, "/"))
	b.WriteString("/api/")
	b.WriteString(p.cfg.APIVersion)
	if !strings.HasPrefix(desc.Endpoint, "/") {
		b.WriteString("/")
	}
	b.WriteString(desc.Endpoint)

	for i, param := range desc.Params {
		if i == 0 {
			b.WriteString("?")
		} else {
			b.WriteString("&")
		}
		b.WriteString(url.QueryEscape(param.Key))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(param.Value))
	}

	return b.String()
}

// do performs a single attempt. token, when non-empty, is injected as a
// bearer credential unless the caller supplied its own Authorization
// header. A non-2xx status surfaces as *APIError; transport failures and
// attempt timeouts surface as wrapped errors classified by isRetryable.
func (p *pipeline) do(ctx context.Context, desc *RequestDescriptor, token string) (*Response, error) {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = p.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := desc.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if desc.Body != nil {
		encoded, err := json.Marshal(desc.Body)
		if err != nil {
			return nil, fmt.Errorf("apix: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, p.buildURL(desc), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("apix: failed to create request: %w", err)
	}

	// Defaults first, then config-level headers, then caller headers.
	// Later writers win on conflict.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", newRequestID())
	if p.cfg.ClientID != "" {
		req.Header.Set("X-Client", p.cfg.ClientID)
	}
	for key, value := range p.cfg.DefaultHeaders {
		req.Header.Set(key, value)
	}
	for key, value := range desc.Headers {
		req.Header.Set(key, value)
	}
	if token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Distinguish caller cancellation from the per-attempt deadline:
		// only the latter is a retryable timeout.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("apix: request cancelled: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &APIError{Code: ErrorCodeTimeout, Message: fmt.Sprintf("no response within %s", timeout)}
		}
		return nil, fmt.Errorf("apix: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("apix: request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("apix: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
		json:   isJSONContentType(resp.Header.Get("Content-Type")),
	}, nil
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
