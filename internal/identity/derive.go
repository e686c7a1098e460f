package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const (
	RootSeedSize    = 64
	PurposeSeedSize = 32

	// hkdfSalt and the purpose prefix are frozen: changing either silently
	// breaks account recovery for every existing user.
	hkdfSalt      = "whisper"
	purposePrefix = "whisper/"

	PurposeEncryption = "enc"
	PurposeSigning    = "sign"
	PurposeContacts   = "contacts"
)

// ErrInvariant reports a broken derivation precondition. It is a
// programming error and unreachable in correct code.
var ErrInvariant = errors.New("identity derivation invariant violated")

// RootSeed stretches a mnemonic and optional passphrase into the 64-byte
// trust anchor: PBKDF2-HMAC-SHA512 over the normalized phrase, salt
// "mnemonic"+passphrase, 2048 iterations. Deterministic forever; the frozen
// vectors in the tests exist to catch accidental drift.
func RootSeed(mnemonic, passphrase string) []byte {
	return bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase)
}

// PurposeSeed scopes the root seed to one use: HKDF-SHA256 with salt
// "whisper" and info "whisper/"+purpose, 32 bytes out. Distinct purposes
// never collide because the info string differs.
func PurposeSeed(root []byte, purpose string) ([]byte, error) {
	if len(root) != RootSeedSize {
		return nil, fmt.Errorf("%w: root seed is %d bytes, want %d", ErrInvariant, len(root), RootSeedSize)
	}
	if purpose == "" {
		return nil, fmt.Errorf("%w: empty purpose", ErrInvariant)
	}
	return hkdfExpand(root, hkdfSalt, purposePrefix+purpose, PurposeSeedSize)
}

func hkdfExpand(secret []byte, salt, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, []byte(salt), []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
