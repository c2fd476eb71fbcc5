package tokenstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// roundtrip exercises the Store contract shared by every backend.
func roundtrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	access, err := store.AccessToken(ctx)
	require.NoError(t, err)
	require.Empty(t, access, "fresh store starts empty")

	refresh, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	require.Empty(t, refresh)

	require.NoError(t, store.SetAccessToken(ctx, "acc-1"))
	require.NoError(t, store.SetRefreshToken(ctx, "ref-1"))

	access, err = store.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "acc-1", access)

	refresh, err = store.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "ref-1", refresh)

	// Overwrite, as a refresh rotating the pair would.
	require.NoError(t, store.SetAccessToken(ctx, "acc-2"))
	access, err = store.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "acc-2", access)

	require.NoError(t, store.Clear(ctx))
	access, err = store.AccessToken(ctx)
	require.NoError(t, err)
	require.Empty(t, access)
	refresh, err = store.RefreshToken(ctx)
	require.NoError(t, err)
	require.Empty(t, refresh)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	require.False(t, store.Secure())
	roundtrip(t, store)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.bin")

	store, err := NewFile(path, []byte("correct horse battery staple"))
	require.NoError(t, err)
	require.True(t, store.Secure())
	roundtrip(t, store)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.bin")
	secret := []byte("s3cret")

	store, err := NewFile(path, secret)
	require.NoError(t, err)
	require.NoError(t, store.SetAccessToken(ctx, "acc-1"))
	require.NoError(t, store.SetRefreshToken(ctx, "ref-1"))

	reopened, err := NewFile(path, secret)
	require.NoError(t, err)
	access, err := reopened.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "acc-1", access)
	refresh, err := reopened.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "ref-1", refresh)
}

func TestFileStoreWrongSecret(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.bin")

	store, err := NewFile(path, []byte("right"))
	require.NoError(t, err)
	require.NoError(t, store.SetAccessToken(ctx, "acc-1"))

	intruder, err := NewFile(path, []byte("wrong"))
	require.NoError(t, err)
	_, err = intruder.AccessToken(ctx)
	require.ErrorIs(t, err, ErrCorruptStore)
}

func TestFileStoreRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewFile(filepath.Join(t.TempDir(), "session.bin"), nil)
	require.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	store, err := NewSQLite(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer store.Close()

	require.False(t, store.Secure())
	roundtrip(t, store)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "session.db")

	store, err := NewSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, store.SetAccessToken(ctx, "acc-1"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLite(dsn)
	require.NoError(t, err)
	defer reopened.Close()

	access, err := reopened.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "acc-1", access)
}

func TestResolveStore(t *testing.T) {
	t.Run("no secret falls back to memory", func(t *testing.T) {
		t.Setenv("GATHERLY_STORE_SECRET", "")
		store := ResolveStore(ResolveOptions{Dir: t.TempDir()})
		require.IsType(t, &Memory{}, store)
		require.False(t, store.Secure())
	})

	t.Run("secret selects encrypted file store", func(t *testing.T) {
		store := ResolveStore(ResolveOptions{Dir: t.TempDir(), Secret: []byte("s")})
		require.True(t, store.Secure())
		roundtrip(t, store)
	})

	t.Run("sqlite preference", func(t *testing.T) {
		store := ResolveStore(ResolveOptions{Dir: t.TempDir(), PreferSQLite: true})
		sqlite, ok := store.(*SQLite)
		require.True(t, ok)
		defer sqlite.Close()
		roundtrip(t, store)
	})
}
