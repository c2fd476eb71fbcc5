package tokenstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	fileSaltSize = 16

	// argon2id parameters for deriving the sealing key from the secret.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// ErrCorruptStore reports a token file that failed authentication during
// decryption, either from tampering or a changed secret.
var ErrCorruptStore = errors.New("tokenstore: token file is corrupt or the secret changed")

// File persists the credential pair in a single encrypted file.
//
// Layout: [16-byte salt][12-byte nonce][AES-256-GCM sealed JSON payload].
// The sealing key is derived from the supplied secret with argon2id using
// the per-file salt, so the same secret yields a different key per file.
type File struct {
	path   string
	secret []byte

	mu sync.Mutex
}

type filePayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// NewFile creates a file-backed store at path, sealed with secret. The
// file is created lazily on first write; a missing file reads as empty
// credentials.
func NewFile(path string, secret []byte) (*File, error) {
	if len(secret) == 0 {
		return nil, errors.New("tokenstore: file store requires a non-empty secret")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: failed to create store directory: %w", err)
	}
	return &File{path: path, secret: secret}, nil
}

// Secure is true: tokens are encrypted at rest.
func (f *File) Secure() bool { return true }

func (f *File) AccessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, err := f.load(ctx)
	if err != nil {
		return "", err
	}
	return payload.AccessToken, nil
}

func (f *File) SetAccessToken(ctx context.Context, token string) error {
	return f.update(ctx, func(p *filePayload) { p.AccessToken = token })
}

func (f *File) RefreshToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, err := f.load(ctx)
	if err != nil {
		return "", err
	}
	return payload.RefreshToken, nil
}

func (f *File) SetRefreshToken(ctx context.Context, token string) error {
	return f.update(ctx, func(p *filePayload) { p.RefreshToken = token })
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenstore: failed to remove token file: %w", err)
	}
	return nil
}

func (f *File) update(ctx context.Context, mutate func(*filePayload)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload, err := f.load(ctx)
	if err != nil {
		return err
	}
	mutate(payload)
	return f.save(payload)
}

func (f *File) load(ctx context.Context) (*filePayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &filePayload{}, nil
		}
		return nil, fmt.Errorf("tokenstore: failed to read token file: %w", err)
	}

	if len(raw) < fileSaltSize {
		return nil, ErrCorruptStore
	}
	salt, sealed := raw[:fileSaltSize], raw[fileSaltSize:]

	gcm, err := f.aead(salt)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrCorruptStore
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCorruptStore
	}

	var payload filePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, ErrCorruptStore
	}
	return &payload, nil
}

func (f *File) save(payload *filePayload) error {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tokenstore: failed to encode payload: %w", err)
	}

	salt := make([]byte, fileSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("tokenstore: failed to generate salt: %w", err)
	}

	gcm, err := f.aead(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("tokenstore: failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, fileSaltSize+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	// Write via rename so a concurrent reader never observes a torn file.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("tokenstore: failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("tokenstore: failed to replace token file: %w", err)
	}
	return nil
}

func (f *File) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(f.secret, salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: failed to create GCM: %w", err)
	}
	return gcm, nil
}
