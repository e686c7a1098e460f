package securestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/telemetry"
)

const (
	snapshotVersion = 1
	snapshotFile    = "secrets.json"
)

// SecretStore is a named-slot map persisted as one JSON snapshot file.
// Secret slots go through the envelope; plain slots hold canonical text
// of the raw value. Every mutation rewrites the snapshot atomically, so
// a crash leaves either the old or the new state, never a mix.
type SecretStore struct {
	envelope *Envelope
	path     string

	mu      sync.RWMutex
	secrets map[string]string
}

type snapshot struct {
	Version uint32            `json:"version"`
	Secrets map[string]string `json:"secrets"`
}

func OpenSecretStore(dataDir string, envelope *Envelope) (*SecretStore, error) {
	s := &SecretStore{
		envelope: envelope,
		path:     filepath.Join(dataDir, snapshotFile),
		secrets:  make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SecretStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("%w: secrets snapshot is not valid json", canonical.ErrFormat)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported secrets snapshot version %d", canonical.ErrFormat, snap.Version)
	}
	if snap.Secrets != nil {
		s.secrets = snap.Secrets
	}
	return nil
}

// Put seals plaintext under the protection key and stores it at name,
// silently overwriting any previous value.
func (s *SecretStore) Put(name string, plaintext []byte) error {
	if err := checkSlotName(name); err != nil {
		return err
	}
	sealed, err := s.envelope.Encrypt(plaintext)
	if err != nil {
		return err
	}
	return s.setText(name, canonical.Encode(sealed))
}

// Get opens the secret stored at name. An absent slot is (nil, false,
// nil), not an error.
func (s *SecretStore) Get(name string) ([]byte, bool, error) {
	text, ok, err := s.text(name)
	if err != nil || !ok {
		return nil, false, err
	}
	sealed, err := canonical.Decode(text)
	if err != nil {
		return nil, false, err
	}
	plaintext, err := s.envelope.Decrypt(sealed)
	if err != nil {
		return nil, false, err
	}
	return plaintext, true, nil
}

// PutPlain stores a non-secret value at name without sealing it.
func (s *SecretStore) PutPlain(name string, value []byte) error {
	if err := checkSlotName(name); err != nil {
		return err
	}
	return s.setText(name, canonical.Encode(value))
}

func (s *SecretStore) GetPlain(name string) ([]byte, bool, error) {
	text, ok, err := s.text(name)
	if err != nil || !ok {
		return nil, false, err
	}
	value, err := canonical.Decode(text)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Remove deletes the slot; removing an absent slot is a no-op.
func (s *SecretStore) Remove(name string) error {
	if err := checkSlotName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[name]; !ok {
		return nil
	}
	next := cloneSecrets(s.secrets)
	delete(next, name)
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.secrets = next
	return nil
}

// WipeAll removes every named slot in a single persisted step. Absent
// names are skipped.
func (s *SecretStore) WipeAll(names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneSecrets(s.secrets)
	changed := false
	for _, name := range names {
		if _, ok := next[name]; ok {
			delete(next, name)
			changed = true
		}
	}
	if changed {
		if err := s.persistLocked(next); err != nil {
			return err
		}
		s.secrets = next
	}
	telemetry.StoreWipes.Inc()
	return nil
}

// Contains reports slot presence without opening anything.
func (s *SecretStore) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.secrets[name]
	return ok
}

func (s *SecretStore) text(name string) (string, bool, error) {
	if err := checkSlotName(name); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.secrets[name]
	return text, ok, nil
}

func (s *SecretStore) setText(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneSecrets(s.secrets)
	next[name] = text
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.secrets = next
	return nil
}

func (s *SecretStore) persistLocked(next map[string]string) error {
	raw, err := json.MarshalIndent(snapshot{Version: snapshotVersion, Secrets: next}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, raw, 0o600)
}

func cloneSecrets(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func checkSlotName(name string) error {
	if name == "" || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: bad slot name %q", canonical.ErrFormat, name)
	}
	return nil
}
