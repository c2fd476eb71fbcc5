package apix

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gatherly/gatherly-go/pkg/tokenstore"
)

// AuthEventKind identifies the kind of session change the client emitted.
type AuthEventKind string

const (
	// AuthEventLoggedIn is emitted after a successful login stores tokens.
	AuthEventLoggedIn AuthEventKind = "logged_in"

	// AuthEventLoggedOut is emitted after an explicit logout cleared tokens.
	AuthEventLoggedOut AuthEventKind = "logged_out"

	// AuthEventSessionExpired is emitted when a token refresh fails and the
	// stored credentials have been cleared. Consumers should treat this as
	// a forced logout.
	AuthEventSessionExpired AuthEventKind = "session_expired"
)

// AuthEvent signals a session state change. The session/UI layer consumes
// these instead of injecting invalidation callbacks into the client.
type AuthEvent struct {
	Kind   AuthEventKind
	Reason string
}

// AuthEvents returns the channel the client emits session changes on.
// Events are dropped, not blocked on, when nothing is draining the channel.
func (c *Client) AuthEvents() <-chan AuthEvent {
	return c.events
}

func (c *Client) emit(event AuthEvent) {
	select {
	case c.events <- event:
	default:
		c.logger.Debug("auth event dropped, channel full", "kind", event.Kind)
	}
}

// refreshTokenRequest is the refresh endpoint's request body.
type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshAccessToken exchanges the stored refresh token for a new access
// token, collapsing concurrent callers into a single in-flight refresh.
//
// Every caller observing a 401 while a refresh is running attaches to the
// same pending result. The refresh itself runs on a context detached from
// any single waiter, so cancelling one request never cancels a refresh
// other requests are waiting on. On failure both tokens are cleared and a
// session-expired event is emitted.
func (c *Client) refreshAccessToken(ctx context.Context, store tokenstore.Store) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		return c.doRefresh(rctx, store)
	})

	select {
	case <-ctx.Done():
		// This waiter gave up; the shared refresh keeps running for the
		// others and its result still lands in the store.
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// doRefresh performs the actual refresh exchange. Runs at most once per
// single-flight window.
func (c *Client) doRefresh(ctx context.Context, store tokenstore.Store) (string, error) {
	refreshToken, err := store.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("apix: failed to read refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	desc := &RequestDescriptor{
		Endpoint: "/auth/refresh",
		Method:   http.MethodPost,
		Body:     refreshTokenRequest{RefreshToken: refreshToken},
	}

	// The refresh call is a single attempt with no bearer token: the
	// refresh token in the body is the credential.
	resp, err := c.pipe.do(ctx, desc, "")
	if err != nil {
		if clearErr := store.Clear(ctx); clearErr != nil {
			c.logger.Warn("failed to clear tokens after refresh failure", "error", clearErr)
		}
		c.emit(AuthEvent{Kind: AuthEventSessionExpired, Reason: err.Error()})
		c.logger.Info("token refresh failed, session cleared", "error", err)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	var envelope authEnvelope
	if err := resp.Decode(&envelope); err != nil {
		return "", fmt.Errorf("apix: malformed refresh response: %w", err)
	}
	tokens := envelope.Data.Tokens
	if tokens.AccessToken == "" {
		return "", fmt.Errorf("apix: refresh response carried no access token")
	}

	if err := store.SetAccessToken(ctx, tokens.AccessToken); err != nil {
		return "", fmt.Errorf("apix: failed to store access token: %w", err)
	}
	if tokens.RefreshToken != "" {
		// Rotated refresh token; keep the old one otherwise.
		if err := store.SetRefreshToken(ctx, tokens.RefreshToken); err != nil {
			return "", fmt.Errorf("apix: failed to store refresh token: %w", err)
		}
	}

	c.logger.Debug("access token refreshed")
	return tokens.AccessToken, nil
}
