package apix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/gatherly/gatherly-go/pkg/tokenstore"
)

// Client is the single entry point for talking to the Gatherly backend.
// It composes the request pipeline, the retry controller and the
// single-flight token refresh, and owns the active token store reference.
//
// A Client is safe for concurrent use. Construct one explicitly with
// NewClient and pass it to whatever needs it; there is no package-level
// instance.
type Client struct {
	cfg     Config
	pipe    *pipeline
	logger  *slog.Logger
	limiter *rate.Limiter

	mu    sync.RWMutex
	store tokenstore.Store

	refreshGroup singleflight.Group

	events chan AuthEvent
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger attaches a logger for debug-level request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the underlying *http.Client. The pipeline manages
// per-attempt timeouts itself, so the supplied client should not set one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.pipe.httpClient = hc }
}

// NewClient creates a Client from cfg with the given token store. A nil
// store falls back to an in-memory one.
func NewClient(cfg Config, store tokenstore.Store, opts ...Option) *Client {
	cfg = cfg.withDefaults()

	if store == nil {
		store = tokenstore.NewMemory()
	}

	c := &Client{
		cfg: cfg,
		pipe: &pipeline{
			// No client-level timeout: attempts are bounded per request
			// by the descriptor/config timeout.
			httpClient: &http.Client{},
			cfg:        cfg,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:  store,
		events: make(chan AuthEvent, 8),
	}

	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetTokenStore atomically swaps the active token store. Requests already
// in flight keep using the store reference they captured when they began.
func (c *Client) SetTokenStore(store tokenstore.Store) {
	if store == nil {
		store = tokenstore.NewMemory()
	}
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

// TokenStore returns the currently active token store.
func (c *Client) TokenStore() tokenstore.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// IsAuthenticated reports whether an access token is currently stored.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	token, err := c.TokenStore().AccessToken(ctx)
	return err == nil && token != ""
}

// ============================================================================
// Verb helpers
// ============================================================================

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, params ...Param) (*Response, error) {
	return c.Do(ctx, &RequestDescriptor{Endpoint: endpoint, Method: http.MethodGet, Params: params, MaxRetries: -1})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any, params ...Param) (*Response, error) {
	return c.Do(ctx, &RequestDescriptor{Endpoint: endpoint, Method: http.MethodPost, Body: body, Params: params, MaxRetries: -1})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any, params ...Param) (*Response, error) {
	return c.Do(ctx, &RequestDescriptor{Endpoint: endpoint, Method: http.MethodPut, Body: body, Params: params, MaxRetries: -1})
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, params ...Param) (*Response, error) {
	return c.Do(ctx, &RequestDescriptor{Endpoint: endpoint, Method: http.MethodPatch, Body: body, Params: params, MaxRetries: -1})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, params ...Param) (*Response, error) {
	return c.Do(ctx, &RequestDescriptor{Endpoint: endpoint, Method: http.MethodDelete, Params: params, MaxRetries: -1})
}

// ============================================================================
// Retry controller
// ============================================================================

// Do issues a request with bounded retry, exponential backoff and
// transparent token refresh on a first 401.
//
// Retry semantics:
//   - Up to MaxRetries+1 network attempts; the delay before retry n is
//     RetryBase * 2^(n-1), applied only between attempts.
//   - Transport failures, timeouts, 5xx and 429 are retried; 400, 403 and
//     a 401 after a refresh has already been attempted abort immediately.
//   - The refresh retry after the first 401 does not consume retry budget.
//   - Caller cancellation aborts the loop at any suspension point and
//     surfaces as a context error, never as ErrRetriesExhausted.
func (c *Client) Do(ctx context.Context, desc *RequestDescriptor) (*Response, error) {
	maxRetries := desc.MaxRetries
	if maxRetries < 0 {
		maxRetries = c.cfg.MaxRetries
	}

	// The store reference is captured once per request; a concurrent
	// SetTokenStore affects only requests issued after the swap.
	store := c.TokenStore()

	var lastErr error
	attempt := 0
	refreshed := false

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("apix: request cancelled: %w", err)
			}
		}

		token, err := store.AccessToken(ctx)
		if err != nil {
			c.logger.Warn("token store read failed, proceeding unauthenticated", "error", err)
			token = ""
		}

		resp, err := c.pipe.do(ctx, desc, token)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("apix: request cancelled: %w", ctx.Err())
		}

		apiErr, isAPIErr := AsAPIError(err)

		if isAPIErr && apiErr.Status == http.StatusUnauthorized {
			if refreshed {
				// Second 401 for this request: the refreshed token was
				// rejected too. Surface it, no further refresh.
				return nil, err
			}
			refreshed = true

			if _, rerr := c.refreshAccessToken(ctx, store); rerr != nil {
				if errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
					return nil, fmt.Errorf("apix: request cancelled: %w", rerr)
				}
				if errors.Is(rerr, ErrNoRefreshToken) {
					// Nothing to refresh with: surface the 401 unchanged.
					return nil, err
				}
				return nil, fmt.Errorf("%w: %w", rerr, apiErr)
			}

			c.logger.Debug("access token refreshed, retrying request",
				"method", desc.Method, "endpoint", desc.Endpoint)
			continue // immediate retry, no backoff, no budget consumed
		}

		retryable := !isAPIErr || apiErr.Retryable()
		if !retryable {
			return nil, err
		}

		lastErr = err
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, lastErr)
		}

		attempt++
		delay := c.cfg.RetryBase * time.Duration(1<<(attempt-1))
		c.logger.Debug("retrying request",
			"method", desc.Method, "endpoint", desc.Endpoint,
			"attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("apix: request cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
