// Package keystore abstracts the platform key store that guards the
// secret-store protection key. Hosts with a hardware-backed store plug in
// their own Provider; FileProvider covers everything else.
package keystore

import (
	"errors"
	"fmt"

	"whisper2/go-keyring/internal/canonical"
)

// DefaultAlias names the wrapping key. The version suffix exists so a
// future scheme change can run old and new keys side by side during a
// migration instead of rotating in place.
const DefaultAlias = "whisper_keywrap_v1"

// ErrUnwrapFailed reports that wrapped key material did not authenticate:
// the wrapping key rotated, the blob was tampered with, or it was wrapped
// under a different alias.
var ErrUnwrapFailed = errors.New("keystore unwrap failed")

// Handle is one wrapping key inside a provider. Wrap and Unwrap are
// inverse AEAD operations over small key blobs.
type Handle interface {
	Wrap(plaintext []byte) ([]byte, error)
	Unwrap(wrapped []byte) ([]byte, error)
}

// Provider manages wrapping keys by alias. GetOrCreateKey returns the
// handle for alias, creating the key on first use; concurrent calls for
// one alias must observe a single key. DeleteKey destroys the key and is
// a no-op when the alias is absent. ContainsAlias reports existence
// without creating anything.
type Provider interface {
	GetOrCreateKey(alias string) (Handle, error)
	DeleteKey(alias string) error
	ContainsAlias(alias string) (bool, error)
}

func checkAlias(alias string) error {
	if alias == "" || len(alias) > 64 {
		return fmt.Errorf("%w: keystore alias must be 1..64 characters", canonical.ErrFormat)
	}
	for _, r := range alias {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return fmt.Errorf("%w: keystore alias %q contains %q", canonical.ErrFormat, alias, r)
		}
	}
	return nil
}
