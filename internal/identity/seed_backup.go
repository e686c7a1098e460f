package identity

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/securestore"
)

var ErrPasswordRequired = errors.New("password is required")

const (
	backupVersion  = 1
	backupPrefix   = "WSPBAK1\n"
	backupSaltSize = 16
)

// BackupParams are the Argon2id cost parameters baked into an exported
// seed backup. Decrypt honors the parameters stored in the file, within
// the bounds enforced by validate.
type BackupParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

func DefaultBackupParams() BackupParams {
	return BackupParams{Time: 2, MemoryKiB: 64 * 1024, Threads: 1}
}

func (p BackupParams) validate() error {
	if p.Time < 1 || p.Time > 16 {
		return fmt.Errorf("%w: backup kdf time %d out of range", canonical.ErrFormat, p.Time)
	}
	if p.MemoryKiB < 8*1024 || p.MemoryKiB > 1024*1024 {
		return fmt.Errorf("%w: backup kdf memory %d KiB out of range", canonical.ErrFormat, p.MemoryKiB)
	}
	if p.Threads < 1 || p.Threads > 8 {
		return fmt.Errorf("%w: backup kdf threads %d out of range", canonical.ErrFormat, p.Threads)
	}
	return nil
}

// Clamp forces each cost parameter into the range validate accepts.
// Zero fields take the defaults.
func (p BackupParams) Clamp() BackupParams {
	def := DefaultBackupParams()
	if p.Time == 0 {
		p.Time = def.Time
	} else if p.Time > 16 {
		p.Time = 16
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = def.MemoryKiB
	} else if p.MemoryKiB < 8*1024 {
		p.MemoryKiB = 8 * 1024
	} else if p.MemoryKiB > 1024*1024 {
		p.MemoryKiB = 1024 * 1024
	}
	if p.Threads == 0 {
		p.Threads = def.Threads
	} else if p.Threads > 8 {
		p.Threads = 8
	}
	return p
}

type backupEnvelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// EncryptSeedBackup seals the recovery phrase under a password for
// off-device storage: Argon2id stretches the password, XChaCha20-Poly1305
// seals the phrase. The output is a self-describing file blob.
func EncryptSeedBackup(mnemonic string, password []byte, params BackupParams) ([]byte, error) {
	if len(bytes.TrimSpace(password)) == 0 {
		return nil, ErrPasswordRequired
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	normalized := NormalizeMnemonic(mnemonic)
	if !ValidateMnemonic(normalized) {
		return nil, ErrInvalidMnemonic
	}

	salt := make([]byte, backupSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := backupKey(password, salt, params)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, []byte(normalized), nil)

	env := backupEnvelope{
		Version:     backupVersion,
		KDF:         "argon2id",
		KDFTime:     params.Time,
		KDFMemoryKB: params.MemoryKiB,
		KDFThreads:  params.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(backupPrefix), raw...), nil
}

// DecryptSeedBackup recovers the phrase from a backup blob. Malformed
// blobs fail with a format error; a wrong password or tampered ciphertext
// fails with securestore.ErrAuthFailed.
func DecryptSeedBackup(data, password []byte) (string, error) {
	if len(bytes.TrimSpace(password)) == 0 {
		return "", ErrPasswordRequired
	}
	if !strings.HasPrefix(string(data), backupPrefix) {
		return "", fmt.Errorf("%w: not a seed backup", canonical.ErrFormat)
	}
	var env backupEnvelope
	if err := json.Unmarshal(data[len(backupPrefix):], &env); err != nil {
		return "", fmt.Errorf("%w: malformed seed backup", canonical.ErrFormat)
	}
	if env.Version != backupVersion || env.KDF != "argon2id" {
		return "", fmt.Errorf("%w: unsupported seed backup version", canonical.ErrFormat)
	}
	params := BackupParams{Time: env.KDFTime, MemoryKiB: env.KDFMemoryKB, Threads: env.KDFThreads}
	if err := params.validate(); err != nil {
		return "", err
	}
	if err := canonical.CheckLen(env.Salt, backupSaltSize); err != nil {
		return "", err
	}
	if err := canonical.CheckLen(env.Nonce, chacha20poly1305.NonceSizeX); err != nil {
		return "", err
	}

	key := backupKey(password, env.Salt, params)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: seed backup open failed", securestore.ErrAuthFailed)
	}
	defer zeroBytes(plaintext)

	mnemonic := string(plaintext)
	if !ValidateMnemonic(mnemonic) {
		return "", fmt.Errorf("%w: backup decrypted to a corrupt phrase", ErrInvalidMnemonic)
	}
	return mnemonic, nil
}

func backupKey(password, salt []byte, params BackupParams) []byte {
	return argon2.IDKey(password, salt, params.Time, params.MemoryKiB, params.Threads, chacha20poly1305.KeySize)
}
