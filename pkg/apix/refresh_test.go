package apix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly-go/pkg/tokenstore"
)

// authBackend is a fake backend with one valid access token at a time.
// GET /api/v1/events requires the current token; POST /api/v1/auth/refresh
// rotates it when given the expected refresh token.
type authBackend struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	refreshCalls atomic.Int32
	refreshDelay time.Duration
	refreshFails bool
	generation   int
}

func newAuthBackend() *authBackend {
	return &authBackend{accessToken: "access-0", refreshToken: "refresh-0"}
}

func (b *authBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b.refreshCalls.Add(1)
		time.Sleep(b.refreshDelay)

		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if b.refreshFails || req.RefreshToken != b.refreshToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"token_expired","message":"refresh token invalid"}`))
			return
		}

		b.generation++
		b.accessToken = fmt.Sprintf("access-%d", b.generation)
		b.refreshToken = fmt.Sprintf("refresh-%d", b.generation)
		fmt.Fprintf(w, `{"success":true,"data":{"tokens":{"access_token":%q,"refresh_token":%q}}}`,
			b.accessToken, b.refreshToken)
	})

	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b.mu.Lock()
		valid := "Bearer " + b.accessToken
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"token_expired","message":"access token expired"}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":[]}`))
	})

	return mux
}

// expire invalidates the current access token server-side without touching
// the refresh token.
func (b *authBackend) expire() {
	b.mu.Lock()
	b.accessToken = "revoked"
	b.mu.Unlock()
}

func seedStore(t *testing.T, store tokenstore.Store, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SetAccessToken(ctx, access))
	require.NoError(t, store.SetRefreshToken(ctx, refresh))
}

func TestRefreshAndRetryOn401(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	store := tokenstore.NewMemory()
	seedStore(t, store, "access-0", "refresh-0")
	client := newTestClient(t, server, store)

	// Valid session: the request goes straight through.
	resp, err := client.Get(context.Background(), "/events")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.EqualValues(t, 0, backend.refreshCalls.Load())

	// Server-side invalidation: the next request eats a 401, refreshes and
	// retries once. The caller never sees the intermediate 401.
	backend.expire()
	resp, err = client.Get(context.Background(), "/events")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.EqualValues(t, 1, backend.refreshCalls.Load())

	// Store now carries the rotated pair.
	access, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", access)
	refresh, err := store.RefreshToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refresh)
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend()
	backend.refreshDelay = 150 * time.Millisecond // hold the window open
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	store := tokenstore.NewMemory()
	seedStore(t, store, "stale", "refresh-0")
	client := newTestClient(t, server, store)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = client.Get(context.Background(), "/events")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}
	require.EqualValues(t, 1, backend.refreshCalls.Load(),
		"all concurrent 401 observers must share a single refresh")
}

func TestSecond401IsNotRefreshedAgain(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/auth/refresh" {
			refreshCalls.Add(1)
			// Refresh "succeeds" but the issued token is still rejected.
			w.Write([]byte(`{"success":true,"data":{"tokens":{"access_token":"still-bad"}}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"token_expired","message":"nope"}`))
	}))
	defer server.Close()

	store := tokenstore.NewMemory()
	seedStore(t, store, "stale", "refresh-0")
	client := newTestClient(t, server, store)

	_, err := client.Get(context.Background(), "/events")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.EqualValues(t, 1, refreshCalls.Load(), "no second refresh for the same request")
	require.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestNo401RefreshWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			refreshCalls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"invalid_credentials","message":"who are you"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, tokenstore.NewMemory())

	_, err := client.Get(context.Background(), "/events")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "invalid_credentials", apiErr.Code, "original 401 surfaces unchanged")
	require.EqualValues(t, 0, refreshCalls.Load(), "no network refresh without a refresh token")
}

func TestRefreshFailureClearsTokens(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend()
	backend.refreshFails = true
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	store := tokenstore.NewMemory()
	seedStore(t, store, "stale", "refresh-0")
	client := newTestClient(t, server, store)

	_, err := client.Get(context.Background(), "/events")
	require.ErrorIs(t, err, ErrRefreshFailed)

	access, _ := store.AccessToken(context.Background())
	refresh, _ := store.RefreshToken(context.Background())
	require.Empty(t, access)
	require.Empty(t, refresh)

	select {
	case event := <-client.AuthEvents():
		require.Equal(t, AuthEventSessionExpired, event.Kind)
	default:
		t.Fatal("expected a session_expired auth event")
	}
}

func TestWaiterCancellationDoesNotKillSharedRefresh(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend()
	backend.refreshDelay = 80 * time.Millisecond
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	store := tokenstore.NewMemory()
	seedStore(t, store, "stale", "refresh-0")
	client := newTestClient(t, server, store)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var cancelledErr, survivorErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelledErr = client.Get(ctx, "/events")
	}()
	go func() {
		defer wg.Done()
		_, survivorErr = client.Get(context.Background(), "/events")
	}()

	time.Sleep(30 * time.Millisecond) // both are inside the refresh window
	cancel()
	wg.Wait()

	require.ErrorIs(t, cancelledErr, context.Canceled)
	require.NoError(t, survivorErr, "the shared refresh must survive one waiter's cancellation")
	require.EqualValues(t, 1, backend.refreshCalls.Load())

	access, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", access, "refresh outcome still lands in the store")
}

func TestExplicitRefreshTokenCall(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	store := tokenstore.NewMemory()
	seedStore(t, store, "access-0", "refresh-0")
	client := newTestClient(t, server, store)

	token, err := client.RefreshToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
	require.EqualValues(t, 1, backend.refreshCalls.Load())
}
