package tokenstore

import (
	"context"
	"sync"
)

// Memory is the in-memory fallback store. Tokens live for the process
// lifetime only and are never written to disk.
type Memory struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AccessToken(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken, nil
}

func (m *Memory) SetAccessToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = token
	return nil
}

func (m *Memory) RefreshToken(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshToken, nil
}

func (m *Memory) SetRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshToken = token
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = ""
	m.refreshToken = ""
	return nil
}

// Secure is false: tokens are held in plain process memory.
func (m *Memory) Secure() bool { return false }
