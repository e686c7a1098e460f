package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"whisper2/go-keyring/internal/telemetry"
)

// SignChallenge signs a server authentication challenge. The server
// contract is Ed25519 over the SHA-256 digest of the challenge bytes, not
// over the raw challenge.
func SignChallenge(signingPrivateKey, challenge []byte) ([]byte, error) {
	if len(signingPrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: signing private key is %d bytes, want %d", ErrInvariant, len(signingPrivateKey), ed25519.PrivateKeySize)
	}
	digest := sha256.Sum256(challenge)
	sig := ed25519.Sign(ed25519.PrivateKey(signingPrivateKey), digest[:])
	telemetry.ChallengesSigned.Inc()
	return sig, nil
}

// VerifyChallenge checks a challenge signature against the signing public
// key, using the same SHA-256 pre-hash as SignChallenge.
func VerifyChallenge(signingPublicKey, challenge, sig []byte) bool {
	if len(signingPublicKey) != ed25519.PublicKeySize {
		return false
	}
	digest := sha256.Sum256(challenge)
	return ed25519.Verify(ed25519.PublicKey(signingPublicKey), digest[:], sig)
}
