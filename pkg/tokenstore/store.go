// Package tokenstore persists the credential pair (access token, refresh
// token) behind a backend-agnostic interface.
//
// Backends: an in-memory store (fallback, process lifetime only), an
// encrypted file store (AES-256-GCM sealed, argon2id-derived key) and a
// SQLite store for multi-process durability. ResolveStore picks the best
// available backend at startup; the capability split is expressed by
// Store.Secure rather than by inspecting the concrete type.
package tokenstore

import "context"

// Store persists the credential pair for a client. All operations take a
// context because backends may touch disk or a database.
//
// Token values are immutable snapshots once read: concurrent reads need no
// coordination, and writes are funneled through the client's refresh
// single-flight or its explicit login/logout paths.
type Store interface {
	// AccessToken returns the stored access token, or "" when absent.
	AccessToken(ctx context.Context) (string, error)

	// SetAccessToken replaces the stored access token.
	SetAccessToken(ctx context.Context, token string) error

	// RefreshToken returns the stored refresh token, or "" when absent.
	RefreshToken(ctx context.Context) (string, error)

	// SetRefreshToken replaces the stored refresh token.
	SetRefreshToken(ctx context.Context, token string) error

	// Clear removes both tokens.
	Clear(ctx context.Context) error

	// Secure reports whether the backend persists tokens encrypted at
	// rest. Callers branch on this flag instead of on the concrete type.
	Secure() bool
}
