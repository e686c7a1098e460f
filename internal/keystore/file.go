package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/platform/singleflight"
)

const kekSize = 32

// FileProvider keeps one wrapping key per alias as a file under dir. It
// stands in for a hardware key store on hosts that have none; the file is
// the trust boundary, so dir must live inside the user's protected
// profile.
type FileProvider struct {
	dir    string
	flight singleflight.Group
}

func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) GetOrCreateKey(alias string) (Handle, error) {
	if err := checkAlias(alias); err != nil {
		return nil, err
	}
	v, err := p.flight.Do(context.Background(), alias, func(context.Context) (any, error) {
		return p.loadOrCreate(alias)
	})
	if err != nil {
		return nil, err
	}
	return v.(Handle), nil
}

func (p *FileProvider) DeleteKey(alias string) error {
	if err := checkAlias(alias); err != nil {
		return err
	}
	p.flight.Forget(alias)
	err := os.Remove(p.keyPath(alias))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (p *FileProvider) ContainsAlias(alias string) (bool, error) {
	if err := checkAlias(alias); err != nil {
		return false, err
	}
	if _, err := os.Stat(p.keyPath(alias)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *FileProvider) keyPath(alias string) string {
	return filepath.Join(p.dir, alias+".key")
}

func (p *FileProvider) loadOrCreate(alias string) (Handle, error) {
	path := p.keyPath(alias)
	key, err := readKeyFile(path)
	if err == nil {
		return &fileHandle{key: key}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return nil, err
	}
	key = make([]byte, kekSize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		// Another process won the creation race; use its key.
		existing, rerr := readKeyFile(path)
		if rerr != nil {
			return nil, rerr
		}
		return &fileHandle{key: existing}, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := f.Write([]byte(canonical.Encode(key))); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &fileHandle{key: key}, nil
}

func readKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := canonical.DecodeLen(string(raw), kekSize)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", filepath.Base(path), err)
	}
	return key, nil
}

type fileHandle struct {
	key []byte
}

func (h *fileHandle) Wrap(plaintext []byte) ([]byte, error) {
	aead, err := newGCM(h.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (h *fileHandle) Unwrap(wrapped []byte) ([]byte, error) {
	aead, err := newGCM(h.key)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: wrapped blob shorter than nonce", canonical.ErrFormat)
	}
	nonce, ciphertext := wrapped[:aead.NonceSize()], wrapped[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
