package tokenstore

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ResolveOptions controls backend selection in ResolveStore.
type ResolveOptions struct {
	// Dir is where file-based backends live. Defaults to
	// $XDG_STATE_HOME/gatherly or ~/.local/state/gatherly.
	Dir string

	// Secret seals the encrypted file store. Falls back to the
	// GATHERLY_STORE_SECRET environment variable. When no secret is
	// available the resolver skips the file store.
	Secret []byte

	// PreferSQLite selects the SQLite backend over the encrypted file
	// store, for setups where several processes share a session.
	PreferSQLite bool

	Logger *slog.Logger
}

// ResolveStore picks the best available backend at startup: the encrypted
// file store when a secret is available (or SQLite when preferred), else
// the in-memory fallback. The chosen store's Secure flag tells the caller
// which class of backend it got; there is no need to inspect the concrete
// type. The client can later hot-swap the result via SetTokenStore.
func ResolveStore(opts ResolveOptions) Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dir := opts.Dir
	if dir == "" {
		dir = defaultStateDir()
	}

	if opts.PreferSQLite {
		store, err := NewSQLite(filepath.Join(dir, "session.db"))
		if err == nil {
			logger.Debug("using sqlite token store", "dir", dir)
			return store
		}
		logger.Warn("sqlite token store unavailable, trying file store", "error", err)
	}

	secret := opts.Secret
	if len(secret) == 0 {
		secret = []byte(os.Getenv("GATHERLY_STORE_SECRET"))
	}
	if len(secret) > 0 {
		store, err := NewFile(filepath.Join(dir, "session.bin"), secret)
		if err == nil {
			logger.Debug("using encrypted file token store", "dir", dir)
			return store
		}
		logger.Warn("file token store unavailable, falling back to memory", "error", err)
	} else {
		logger.Debug("no store secret available, falling back to memory store")
	}

	return NewMemory()
}

func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "gatherly")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gatherly-state"
	}
	return filepath.Join(home, ".local", "state", "gatherly")
}
