package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"

	"whisper2/go-keyring/internal/telemetry"
)

const whisperIDPrefix = "wsp1"

// EncryptionKeyPairFromSeed builds the X25519 key-exchange pair. The
// private key is the 32-byte purpose seed verbatim; clamping happens
// inside the scalar multiplication, so the stored bytes stay byte-equal
// across implementations.
func EncryptionKeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != PurposeSeedSize {
		return KeyPair{}, fmt.Errorf("%w: encryption seed is %d bytes, want %d", ErrInvariant, len(seed), PurposeSeedSize)
	}
	private := append([]byte(nil), seed...)
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		zeroBytes(private)
		return KeyPair{}, err
	}
	return KeyPair{Public: public, Private: private}, nil
}

// SigningKeyPairFromSeed builds the Ed25519 signature pair from the
// 32-byte purpose seed. The private key keeps the standard 64-byte
// seed||public form.
func SigningKeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != PurposeSeedSize {
		return KeyPair{}, fmt.Errorf("%w: signing seed is %d bytes, want %d", ErrInvariant, len(seed), PurposeSeedSize)
	}
	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)
	return KeyPair{Public: append([]byte(nil), public...), Private: private}, nil
}

// DeriveIdentity runs the whole chain: mnemonic -> root seed -> purpose
// seeds -> keypairs and contacts key. Intermediate seed material is wiped
// before returning; the caller owns the result and wipes it after
// persisting.
func DeriveIdentity(mnemonic, passphrase string) (*DerivedKeys, error) {
	root := RootSeed(mnemonic, passphrase)
	defer zeroBytes(root)

	encSeed, err := PurposeSeed(root, PurposeEncryption)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(encSeed)
	signSeed, err := PurposeSeed(root, PurposeSigning)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(signSeed)
	contactsKey, err := PurposeSeed(root, PurposeContacts)
	if err != nil {
		return nil, err
	}

	encryption, err := EncryptionKeyPairFromSeed(encSeed)
	if err != nil {
		zeroBytes(contactsKey)
		return nil, err
	}
	signing, err := SigningKeyPairFromSeed(signSeed)
	if err != nil {
		zeroBytes(contactsKey)
		zeroBytes(encryption.Private)
		return nil, err
	}

	telemetry.IdentitiesDerived.Inc()
	return &DerivedKeys{
		Encryption:  encryption,
		Signing:     signing,
		ContactsKey: contactsKey,
	}, nil
}

// BuildWhisperID renders the stable identifier for a signing public key:
// "wsp1" + base58(blake2b-256(key)).
func BuildWhisperID(signingPublicKey []byte) (string, error) {
	if len(signingPublicKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: signing public key is %d bytes, want %d", ErrInvariant, len(signingPublicKey), ed25519.PublicKeySize)
	}
	sum := blake2b.Sum256(signingPublicKey)
	return whisperIDPrefix + base58.Encode(sum[:]), nil
}

// Fingerprint renders a short comparison tag for a public key: the first
// eight bytes of its blake2b-256 digest as four-character hex groups.
func Fingerprint(publicKey []byte) string {
	sum := blake2b.Sum256(publicKey)
	digits := hex.EncodeToString(sum[:8])
	groups := make([]string, 0, len(digits)/4)
	for i := 0; i < len(digits); i += 4 {
		groups = append(groups, digits[i:i+4])
	}
	return strings.Join(groups, " ")
}
