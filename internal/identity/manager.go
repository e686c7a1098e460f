package identity

import (
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"whisper2/go-keyring/internal/platform/ratelimiter"
	"whisper2/go-keyring/internal/securestore"
	"whisper2/go-keyring/internal/telemetry"
)

var (
	ErrNoIdentity      = errors.New("no identity provisioned")
	ErrIdentityExists  = errors.New("identity already provisioned")
	ErrBackupThrottled = errors.New("backup attempts are temporarily throttled")
)

const restoreLimiterKey = "restore_backup"

// Manager owns the provisioning lifecycle: deriving an identity from a
// recovery phrase, persisting the result through the secret store, and
// serving the operations the agent and CLI expose. Methods are safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	store    *securestore.SecretStore
	envelope *securestore.Envelope
	log      *slog.Logger
	backup   BackupParams
	limiter  *ratelimiter.Keyed
	now      func() time.Time
}

func NewManager(store *securestore.SecretStore, envelope *securestore.Envelope, log *slog.Logger, backup BackupParams, limiter *ratelimiter.Keyed) *Manager {
	return newManagerWithClock(store, envelope, log, backup, limiter, time.Now)
}

func newManagerWithClock(store *securestore.SecretStore, envelope *securestore.Envelope, log *slog.Logger, backup BackupParams, limiter *ratelimiter.Keyed, now func() time.Time) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if backup == (BackupParams{}) {
		backup = DefaultBackupParams()
	}
	return &Manager{
		store:    store,
		envelope: envelope,
		log:      log,
		backup:   backup,
		limiter:  limiter,
		now:      now,
	}
}

// Create generates a fresh 12-word phrase, derives the identity and
// persists every slot. The phrase is returned exactly once and never
// logged; callers must show it to the user immediately.
func (m *Manager) Create(passphrase string) (string, *Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.provisionedLocked() {
		return "", nil, ErrIdentityExists
	}
	mnemonic, err := GenerateMnemonic(12)
	if err != nil {
		return "", nil, err
	}
	id, err := m.installLocked(mnemonic, passphrase)
	if err != nil {
		return "", nil, err
	}
	m.log.Info("identity created", "whisper_id", id.WhisperID)
	return mnemonic, id, nil
}

// Import derives and persists the identity for an existing phrase,
// overwriting whatever was provisioned before.
func (m *Manager) Import(mnemonic, passphrase string) (*Identity, error) {
	normalized := NormalizeMnemonic(mnemonic)
	if !ValidateMnemonic(normalized) {
		return nil, ErrInvalidMnemonic
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.installLocked(normalized, passphrase)
	if err != nil {
		return nil, err
	}
	m.log.Info("identity imported", "whisper_id", id.WhisperID)
	return id, nil
}

func (m *Manager) provisionedLocked() bool {
	return m.store.Contains(securestore.SlotSignPublicKey) || m.store.Contains(securestore.SlotMnemonic)
}

func (m *Manager) installLocked(mnemonic, passphrase string) (*Identity, error) {
	normalized := NormalizeMnemonic(mnemonic)
	keys, err := DeriveIdentity(normalized, passphrase)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	whisperID, err := BuildWhisperID(keys.Signing.Public)
	if err != nil {
		return nil, err
	}

	if err := m.store.SetEncryptionPrivateKey(keys.Encryption.Private); err != nil {
		return nil, err
	}
	if err := m.store.SetSigningPrivateKey(keys.Signing.Private); err != nil {
		return nil, err
	}
	if err := m.store.SetContactsKey(keys.ContactsKey); err != nil {
		return nil, err
	}
	if err := m.store.SetMnemonic(normalized); err != nil {
		return nil, err
	}
	if err := m.store.SetEncryptionPublicKey(keys.Encryption.Public); err != nil {
		return nil, err
	}
	if err := m.store.SetSigningPublicKey(keys.Signing.Public); err != nil {
		return nil, err
	}
	if err := m.store.SetWhisperID(whisperID); err != nil {
		return nil, err
	}
	if _, err := m.store.DeviceID(); err != nil {
		return nil, err
	}

	return &Identity{
		WhisperID:           whisperID,
		EncryptionPublicKey: append([]byte(nil), keys.Encryption.Public...),
		SigningPublicKey:    append([]byte(nil), keys.Signing.Public...),
	}, nil
}

// Current returns the public identity material, or ok=false when no
// identity is provisioned.
func (m *Manager) Current() (*Identity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	signPub, ok, err := m.store.SigningPublicKey()
	if err != nil || !ok {
		return nil, false, err
	}
	encPub, _, err := m.store.EncryptionPublicKey()
	if err != nil {
		return nil, false, err
	}
	whisperID, _, err := m.store.WhisperID()
	if err != nil {
		return nil, false, err
	}
	return &Identity{
		WhisperID:           whisperID,
		EncryptionPublicKey: encPub,
		SigningPublicKey:    signPub,
	}, true, nil
}

// SignChallenge loads the signing key for the duration of the call,
// signs the server challenge and wipes the key material again.
func (m *Manager) SignChallenge(challenge []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	priv, ok, err := m.store.SigningPrivateKey()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoIdentity
	}
	defer zeroBytes(priv)
	return SignChallenge(ed25519.PrivateKey(priv), challenge)
}

// ContactsKey exposes the derived contacts backup key. Callers must wipe
// the returned slice when done.
func (m *Manager) ContactsKey() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok, err := m.store.ContactsKey()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoIdentity
	}
	return key, nil
}

// ExportBackup seals the recovery phrase under the given password using
// the manager's KDF parameters.
func (m *Manager) ExportBackup(password []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mnemonic, ok, err := m.store.Mnemonic()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoIdentity
	}
	return EncryptSeedBackup(mnemonic, password, m.backup)
}

// RestoreBackup opens a seed backup and installs the recovered identity.
// Decrypt attempts are rate limited, and the limiter is consulted before
// any password material is touched. The optional BIP39 passphrase is not
// part of the backup and must be supplied again by the user.
func (m *Manager) RestoreBackup(data, password []byte, passphrase string) (*Identity, error) {
	if !m.limiter.Allow(restoreLimiterKey, m.now()) {
		telemetry.BackupThrottled.Inc()
		return nil, ErrBackupThrottled
	}
	mnemonic, err := DecryptSeedBackup(data, password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.installLocked(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	m.log.Info("identity restored from backup", "whisper_id", id.WhisperID)
	return id, nil
}

func (m *Manager) SetSessionToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("session token must not be empty")
	}
	return m.store.SetSessionToken(token)
}

func (m *Manager) SessionToken() (string, bool, error) {
	return m.store.SessionToken()
}

func (m *Manager) ClearSession() error {
	return m.store.ClearSessionToken()
}

// SetWhisperID overwrites the locally derived identifier with the one
// the server assigned at registration.
func (m *Manager) SetWhisperID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("whisper id must not be empty")
	}
	return m.store.SetWhisperID(id)
}

func (m *Manager) DeviceID() (string, error) {
	return m.store.DeviceID()
}

func (m *Manager) IsLoggedIn() bool {
	return m.store.IsLoggedIn()
}

// Logout wipes every secret slot. With purgeKey the protection key is
// destroyed as well, which renders any surviving ciphertext unreadable.
func (m *Manager) Logout(purgeKey bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.WipeAll(securestore.KnownSlots()...); err != nil {
		return err
	}
	if purgeKey {
		if err := m.envelope.DeleteProtectionKey(); err != nil {
			return err
		}
	}
	m.log.Info("identity wiped", "purge_key", purgeKey)
	return nil
}
