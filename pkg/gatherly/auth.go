package gatherly

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gatherly/gatherly-go/pkg/apix"
)

// authMessages translates auth endpoint statuses into user-facing text.
var authMessages = map[int]string{
	http.StatusBadRequest:      "Please check your details and try again.",
	http.StatusUnauthorized:    "Incorrect email or password.",
	http.StatusConflict:        "An account with that email or username already exists.",
	http.StatusTooManyRequests: "Too many attempts. Please wait a moment and try again.",
}

// AuthService wraps the auth endpoints. It holds no state of its own; the
// client owns the session.
type AuthService struct {
	client *apix.Client
}

// NewAuthService creates an AuthService bound to client.
func NewAuthService(client *apix.Client) *AuthService {
	return &AuthService{client: client}
}

// Login authenticates and returns the account profile. Tokens are stored
// by the client as part of the exchange.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*User, error) {
	result, err := s.client.Login(ctx, identifier, password)
	if err != nil {
		return nil, translate(err, authMessages)
	}

	var user User
	if len(result.User) > 0 {
		if err := json.Unmarshal(result.User, &user); err != nil {
			return nil, fmt.Errorf("gatherly: malformed user in login response: %w", err)
		}
	}
	return &user, nil
}

// Register creates an account and logs it in: the backend issues tokens
// on successful registration, which the service stores the same way Login
// does.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	resp, err := s.client.Post(ctx, "/auth/register", req)
	if err != nil {
		return nil, translate(err, authMessages)
	}

	var envelope itemEnvelope[struct {
		User   User           `json:"user"`
		Tokens apix.TokenPair `json:"tokens"`
	}]
	if err := resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("gatherly: malformed register response: %w", err)
	}

	store := s.client.TokenStore()
	if envelope.Data.Tokens.AccessToken != "" {
		if err := store.SetAccessToken(ctx, envelope.Data.Tokens.AccessToken); err != nil {
			return nil, fmt.Errorf("gatherly: failed to store access token: %w", err)
		}
	}
	if envelope.Data.Tokens.RefreshToken != "" {
		if err := store.SetRefreshToken(ctx, envelope.Data.Tokens.RefreshToken); err != nil {
			return nil, fmt.Errorf("gatherly: failed to store refresh token: %w", err)
		}
	}

	return &envelope.Data.User, nil
}

// Logout ends the session. Local tokens are always cleared, even when the
// server-side call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		return translate(err, authMessages)
	}
	return nil
}

// Profile fetches the authenticated account's profile.
func (s *AuthService) Profile(ctx context.Context) (*User, error) {
	resp, err := s.client.Get(ctx, "/auth/profile")
	if err != nil {
		return nil, translate(err, authMessages)
	}

	var envelope itemEnvelope[User]
	if err := resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("gatherly: malformed profile response: %w", err)
	}
	return &envelope.Data, nil
}
