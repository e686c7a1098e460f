// Package securestore persists the keyring's secrets at rest. Envelope
// seals individual values under a device-local protection key that only
// ever exists wrapped by the platform key store; SecretStore maps named
// slots onto sealed values in one snapshot file.
package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/keystore"
	"whisper2/go-keyring/internal/telemetry"
)

const (
	protectionKeySize = 32
	protectionKeyFile = "protection.key"
	nonceSize         = 12
)

// ErrAuthFailed reports an AEAD authentication failure: tampered
// ciphertext, a foreign key, or a protection key that no longer exists.
// It is never retriable and is kept distinct from format errors so
// callers can route the user to re-authentication instead of debugging.
var ErrAuthFailed = errors.New("securestore authentication failed")

// Envelope seals and opens byte blobs under the protection key. The key
// is created lazily on first use, wrapped by the key-store handle and
// persisted wrapped; the unwrapped copy lives only in memory.
type Envelope struct {
	provider keystore.Provider
	alias    string
	keyPath  string

	mu  sync.Mutex
	key []byte
}

func NewEnvelope(provider keystore.Provider, alias, dataDir string) *Envelope {
	return &Envelope{
		provider: provider,
		alias:    alias,
		keyPath:  filepath.Join(dataDir, protectionKeyFile),
	}
}

// Encrypt seals plaintext and returns nonce || ciphertext+tag. A fresh
// nonce is drawn per call, so sealing the same value twice never yields
// the same bytes.
func (e *Envelope) Encrypt(plaintext []byte) ([]byte, error) {
	key, err := e.protectionKey()
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := aead.Seal(nonce, nonce, plaintext, nil)
	telemetry.EnvelopeSeals.Inc()
	return out, nil
}

// Decrypt opens a blob produced by Encrypt. Blobs too short to carry a
// nonce fail as format errors; everything else that does not open fails
// as ErrAuthFailed.
func (e *Envelope) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < nonceSize {
		telemetry.EnvelopeOpenFailures.WithLabelValues(telemetry.ReasonFormat).Inc()
		return nil, fmt.Errorf("%w: sealed blob is %d bytes, shorter than the nonce", canonical.ErrFormat, len(blob))
	}
	key, err := e.protectionKey()
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		telemetry.EnvelopeOpenFailures.WithLabelValues(telemetry.ReasonAuth).Inc()
		return nil, ErrAuthFailed
	}
	telemetry.EnvelopeOpens.Inc()
	return plaintext, nil
}

// DeleteProtectionKey destroys the protection key: the in-memory copy,
// the wrapped file and the key-store wrapping key. Idempotent; existing
// ciphertext becomes permanently unreadable.
func (e *Envelope) DeleteProtectionKey() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	zeroBytes(e.key)
	e.key = nil
	if err := os.Remove(e.keyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return e.provider.DeleteKey(e.alias)
}

// Close wipes the in-memory protection key. The next operation unwraps
// it from disk again.
func (e *Envelope) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	zeroBytes(e.key)
	e.key = nil
}

// protectionKey returns the unwrapped protection key, creating and
// persisting it on first use. The mutex makes concurrent first use safe:
// exactly one caller creates, the rest observe the cached key.
func (e *Envelope) protectionKey() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.key != nil {
		return e.key, nil
	}
	handle, err := e.provider.GetOrCreateKey(e.alias)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(e.keyPath)
	switch {
	case err == nil:
		wrapped, err := canonical.Decode(string(raw))
		if err != nil {
			return nil, fmt.Errorf("protection key file: %w", err)
		}
		key, err := handle.Unwrap(wrapped)
		if err != nil {
			if errors.Is(err, keystore.ErrUnwrapFailed) {
				return nil, fmt.Errorf("%w: protection key does not unwrap under the current key-store key", ErrAuthFailed)
			}
			return nil, err
		}
		if err := canonical.CheckLen(key, protectionKeySize); err != nil {
			return nil, fmt.Errorf("protection key: %w", err)
		}
		e.key = key
		return e.key, nil

	case errors.Is(err, fs.ErrNotExist):
		key := make([]byte, protectionKeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		wrapped, err := handle.Wrap(key)
		if err != nil {
			zeroBytes(key)
			return nil, err
		}
		if err := writeFileAtomic(e.keyPath, []byte(canonical.Encode(wrapped)), 0o600); err != nil {
			zeroBytes(key)
			return nil, err
		}
		e.key = key
		return e.key, nil

	default:
		return nil, err
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
