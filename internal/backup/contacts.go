// Package backup implements the client side of the encrypted contacts
// backup: the server stores only an opaque blob sealed under the derived
// contacts key, so losing the phrase loses the backup and nothing else
// can open it.
package backup

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/securestore"
)

const (
	// MaxPayloadSize caps the serialized contact list before sealing.
	MaxPayloadSize = 256 * 1024

	payloadVersion = 1
	keySize        = 32
	nonceSize      = 24
)

// Contact is one entry of the backed-up contact list.
type Contact struct {
	WhisperID   string    `json:"whisper_id"`
	DisplayName string    `json:"display_name"`
	AddedAt     time.Time `json:"added_at"`
}

// Payload is the versioned clear form of a contacts backup.
type Payload struct {
	Version  uint32    `json:"version"`
	Contacts []Contact `json:"contacts"`
}

func NewPayload(contacts []Contact) Payload {
	return Payload{Version: payloadVersion, Contacts: contacts}
}

func (p Payload) Marshal() ([]byte, error) {
	if p.Version != payloadVersion {
		return nil, fmt.Errorf("%w: contacts payload version %d", canonical.ErrFormat, p.Version)
	}
	return json.Marshal(p)
}

func UnmarshalPayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: contacts payload is not valid json", canonical.ErrFormat)
	}
	if p.Version != payloadVersion {
		return Payload{}, fmt.Errorf("%w: unsupported contacts payload version %d", canonical.ErrFormat, p.Version)
	}
	return p, nil
}

// SealContacts encrypts a serialized contact list under the derived
// contacts key with XSalsa20-Poly1305. The blob is nonce || box; a fresh
// nonce is drawn per call.
func SealContacts(contactsKey, payload []byte) ([]byte, error) {
	if err := canonical.CheckLen(contactsKey, keySize); err != nil {
		return nil, fmt.Errorf("contacts key: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: contacts payload is %d bytes, cap is %d", canonical.ErrFormat, len(payload), MaxPayloadSize)
	}

	var key [keySize]byte
	copy(key[:], contactsKey)
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], payload, &nonce, &key), nil
}

// OpenContacts decrypts a blob produced by SealContacts. Wrong key or
// tampered data fails with securestore.ErrAuthFailed; everything the
// blob shape rules out fails as a format error first.
func OpenContacts(contactsKey, blob []byte) ([]byte, error) {
	if err := canonical.CheckLen(contactsKey, keySize); err != nil {
		return nil, fmt.Errorf("contacts key: %w", err)
	}
	if len(blob) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: contacts blob is %d bytes, shorter than nonce and tag", canonical.ErrFormat, len(blob))
	}
	if len(blob) > nonceSize+secretbox.Overhead+MaxPayloadSize {
		return nil, fmt.Errorf("%w: contacts blob is %d bytes, cap is %d", canonical.ErrFormat, len(blob), nonceSize+secretbox.Overhead+MaxPayloadSize)
	}

	var key [keySize]byte
	copy(key[:], contactsKey)
	var nonce [nonceSize]byte
	copy(nonce[:], blob[:nonceSize])
	payload, ok := secretbox.Open(nil, blob[nonceSize:], &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("%w: contacts backup does not open", securestore.ErrAuthFailed)
	}
	return payload, nil
}
