package securestore

import (
	"github.com/google/uuid"

	"whisper2/go-keyring/internal/canonical"
)

// Slot names are part of the on-disk format; renaming one orphans every
// existing installation's data.
const (
	SlotEncPrivateKey  = "enc_private_key"
	SlotSignPrivateKey = "sign_private_key"
	SlotContactsKey    = "contacts_key"
	SlotMnemonic       = "mnemonic"
	SlotSessionToken   = "session_token"

	SlotEncPublicKey  = "enc_public_key"
	SlotSignPublicKey = "sign_public_key"
	SlotWhisperID     = "whisper_id"
	SlotDeviceID      = "device_id"
)

// KnownSlots lists every slot this subsystem manages, in wipe order.
func KnownSlots() []string {
	return []string{
		SlotEncPrivateKey,
		SlotSignPrivateKey,
		SlotContactsKey,
		SlotMnemonic,
		SlotSessionToken,
		SlotEncPublicKey,
		SlotSignPublicKey,
		SlotWhisperID,
		SlotDeviceID,
	}
}

func (s *SecretStore) SetEncryptionPrivateKey(key []byte) error {
	return s.Put(SlotEncPrivateKey, key)
}

func (s *SecretStore) EncryptionPrivateKey() ([]byte, bool, error) {
	return s.Get(SlotEncPrivateKey)
}

func (s *SecretStore) SetSigningPrivateKey(key []byte) error {
	return s.Put(SlotSignPrivateKey, key)
}

func (s *SecretStore) SigningPrivateKey() ([]byte, bool, error) {
	return s.Get(SlotSignPrivateKey)
}

func (s *SecretStore) SetContactsKey(key []byte) error {
	return s.Put(SlotContactsKey, key)
}

func (s *SecretStore) ContactsKey() ([]byte, bool, error) {
	return s.Get(SlotContactsKey)
}

func (s *SecretStore) SetMnemonic(mnemonic string) error {
	return s.Put(SlotMnemonic, []byte(mnemonic))
}

func (s *SecretStore) Mnemonic() (string, bool, error) {
	return s.secretString(SlotMnemonic)
}

func (s *SecretStore) SetSessionToken(token string) error {
	return s.Put(SlotSessionToken, []byte(token))
}

func (s *SecretStore) SessionToken() (string, bool, error) {
	return s.secretString(SlotSessionToken)
}

func (s *SecretStore) ClearSessionToken() error {
	return s.Remove(SlotSessionToken)
}

func (s *SecretStore) SetEncryptionPublicKey(key []byte) error {
	return s.PutPlain(SlotEncPublicKey, key)
}

func (s *SecretStore) EncryptionPublicKey() ([]byte, bool, error) {
	return s.GetPlain(SlotEncPublicKey)
}

func (s *SecretStore) SetSigningPublicKey(key []byte) error {
	return s.PutPlain(SlotSignPublicKey, key)
}

func (s *SecretStore) SigningPublicKey() ([]byte, bool, error) {
	return s.GetPlain(SlotSignPublicKey)
}

func (s *SecretStore) SetWhisperID(id string) error {
	return s.PutPlain(SlotWhisperID, []byte(id))
}

func (s *SecretStore) WhisperID() (string, bool, error) {
	b, ok, err := s.GetPlain(SlotWhisperID)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(b), true, nil
}

// DeviceID returns the stable per-install identifier, minting a UUID on
// first use. The read-check-mint sequence runs under the write lock so
// concurrent first calls observe one identifier.
func (s *SecretStore) DeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text, ok := s.secrets[SlotDeviceID]; ok {
		raw, err := canonical.Decode(text)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	id := uuid.NewString()
	next := cloneSecrets(s.secrets)
	next[SlotDeviceID] = canonical.Encode([]byte(id))
	if err := s.persistLocked(next); err != nil {
		return "", err
	}
	s.secrets = next
	return id, nil
}

// IsLoggedIn reports whether both a session token and a whisper id are
// present.
func (s *SecretStore) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, token := s.secrets[SlotSessionToken]
	_, id := s.secrets[SlotWhisperID]
	return token && id
}

func (s *SecretStore) secretString(name string) (string, bool, error) {
	b, ok, err := s.Get(name)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(b), true, nil
}
