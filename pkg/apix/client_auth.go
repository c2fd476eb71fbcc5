package apix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the credential pair issued by the auth endpoints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// authEnvelope is the canonical auth response shape:
// {"success": true, "data": {"user": {...}, "tokens": {...}}}.
// The backend's earlier flat shape ({"user": ..., "access_token": ...}) is
// a migration artifact and is not parsed.
type authEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		User   json.RawMessage `json:"user,omitempty"`
		Tokens TokenPair       `json:"tokens"`
	} `json:"data"`
}

// AuthResult is the outcome of Login. User is left raw for the auth
// service layer to decode into its typed shape.
type AuthResult struct {
	User   json.RawMessage
	Tokens TokenPair
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login authenticates with an identifier (email or username) and password,
// stores the issued token pair, and returns the raw user payload.
func (c *Client) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	desc := &RequestDescriptor{
		Endpoint: "/auth/login",
		Method:   http.MethodPost,
		Body:     loginRequest{Identifier: identifier, Password: password},
	}

	resp, err := c.Do(ctx, desc)
	if err != nil {
		return nil, err
	}

	var envelope authEnvelope
	if err := resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("apix: malformed login response: %w", err)
	}
	if envelope.Data.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("apix: login response carried no access token")
	}

	store := c.TokenStore()
	if err := store.SetAccessToken(ctx, envelope.Data.Tokens.AccessToken); err != nil {
		return nil, fmt.Errorf("apix: failed to store access token: %w", err)
	}
	if envelope.Data.Tokens.RefreshToken != "" {
		if err := store.SetRefreshToken(ctx, envelope.Data.Tokens.RefreshToken); err != nil {
			return nil, fmt.Errorf("apix: failed to store refresh token: %w", err)
		}
	}

	c.emit(AuthEvent{Kind: AuthEventLoggedIn})
	c.logger.Info("logged in", "identifier", identifier)

	return &AuthResult{User: envelope.Data.User, Tokens: envelope.Data.Tokens}, nil
}

// Logout tells the server to invalidate the session, then clears local
// tokens. The server call is best-effort: a failure is logged and local
// cleanup still happens, so the caller always ends up logged out locally.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.Do(ctx, &RequestDescriptor{
		Endpoint:   "/auth/logout",
		Method:     http.MethodPost,
		MaxRetries: 0,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.logger.Warn("server-side logout failed, clearing local session anyway", "error", err)
	}

	if err := c.TokenStore().Clear(ctx); err != nil {
		return fmt.Errorf("apix: failed to clear tokens: %w", err)
	}

	c.emit(AuthEvent{Kind: AuthEventLoggedOut})
	c.logger.Info("logged out")
	return nil
}

// RefreshToken forces a refresh of the access token using the stored
// refresh token. Concurrent callers share a single in-flight refresh.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	return c.refreshAccessToken(ctx, c.TokenStore())
}

// ============================================================================
// Access token inspection
// ============================================================================

// TokenExpiry returns the expiry time of the stored access token, parsed
// from its claims without signature verification. Verification is the
// server's job; the client only needs the timestamp to anticipate a 401.
// Returns the zero time when no token is stored or it carries no expiry.
func (c *Client) TokenExpiry(ctx context.Context) (time.Time, error) {
	token, err := c.TokenStore().AccessToken(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("apix: failed to read access token: %w", err)
	}
	if token == "" {
		return time.Time{}, nil
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("apix: failed to parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// TokenExpiringSoon reports whether the stored access token expires within
// the given window. Callers can refresh proactively instead of eating a
// 401 round trip.
func (c *Client) TokenExpiringSoon(ctx context.Context, within time.Duration) (bool, error) {
	expiry, err := c.TokenExpiry(ctx)
	if err != nil {
		return false, err
	}
	if expiry.IsZero() {
		return false, nil
	}
	return time.Until(expiry) <= within, nil
}
