package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/gatherly/gatherly-go/pkg/tokenstore/migrations"
)

const (
	rowAccessToken  = "access_token"
	rowRefreshToken = "refresh_token"
)

// SQLite persists the credential pair in a SQLite database, one row per
// token. Useful when several processes share a session (e.g. a CLI and a
// background sync agent). Values are stored in the clear, so Secure is
// false; pair it with filesystem permissions or prefer the File store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dsn and applies any
// pending schema migrations from the embedded migration files.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: failed to open database: %w", err)
	}

	// Serialize writers at the pool level; SQLite only allows one anyway.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// applyMigrations brings the schema up to date using the embedded
// migration files compiled into the binary.
func (s *SQLite) applyMigrations() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("tokenstore: failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return fmt.Errorf("tokenstore: failed to load migrations: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, "", driver)
	if err != nil {
		return fmt.Errorf("tokenstore: failed to create migrator: %w", err)
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("tokenstore: migration failed: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// Secure is false: values are stored in the clear.
func (s *SQLite) Secure() bool { return false }

func (s *SQLite) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, rowAccessToken)
}

func (s *SQLite) SetAccessToken(ctx context.Context, token string) error {
	return s.set(ctx, rowAccessToken, token)
}

func (s *SQLite) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, rowRefreshToken)
}

func (s *SQLite) SetRefreshToken(ctx context.Context, token string) error {
	return s.set(ctx, rowRefreshToken, token)
}

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens`); err != nil {
		return fmt.Errorf("tokenstore: failed to clear tokens: %w", err)
	}
	return nil
}

func (s *SQLite) get(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM tokens WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: failed to read %s: %w", name, err)
	}
	return value, nil
}

func (s *SQLite) set(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value)
	if err != nil {
		return fmt.Errorf("tokenstore: failed to write %s: %w", name, err)
	}
	return nil
}
