package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/testutil/fsperm"
)

func TestFileProviderWrapUnwrap(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	h, err := p.GetOrCreateKey(DefaultAlias)
	if err != nil {
		t.Fatalf("get or create key failed: %v", err)
	}

	secret := []byte("thirty-two-bytes-of-key-material")
	wrapped, err := h.Wrap(secret)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	if bytes.Contains(wrapped, secret) {
		t.Fatal("wrapped blob should not contain the plaintext")
	}
	got, err := h.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("unwrap failed: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatalf("unwrap returned %x, want %x", got, secret)
	}
}

func TestFileProviderKeyIsStableAcrossHandles(t *testing.T) {
	dir := t.TempDir()
	p1 := NewFileProvider(dir)
	h1, err := p1.GetOrCreateKey(DefaultAlias)
	if err != nil {
		t.Fatalf("get or create key failed: %v", err)
	}
	wrapped, err := h1.Wrap([]byte("secret"))
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	// A fresh provider over the same directory must load the same key.
	p2 := NewFileProvider(dir)
	h2, err := p2.GetOrCreateKey(DefaultAlias)
	if err != nil {
		t.Fatalf("reload key failed: %v", err)
	}
	got, err := h2.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("unwrap with reloaded key failed: %v", err)
	}
	if string(got) != "secret" {
		t.Fatalf("unwrap returned %q", got)
	}
}

func TestFileProviderConcurrentCreateYieldsOneKey(t *testing.T) {
	p := NewFileProvider(t.TempDir())

	const workers = 16
	handles := make([]Handle, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = p.GetOrCreateKey(DefaultAlias)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d failed: %v", i, err)
		}
	}
	wrapped, err := handles[0].Wrap([]byte("shared"))
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	for i, h := range handles {
		got, err := h.Unwrap(wrapped)
		if err != nil {
			t.Fatalf("handle %d cannot unwrap: all handles must share one key: %v", i, err)
		}
		if string(got) != "shared" {
			t.Fatalf("handle %d returned %q", i, got)
		}
	}
}

func TestFileProviderDeleteKey(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	h, err := p.GetOrCreateKey(DefaultAlias)
	if err != nil {
		t.Fatalf("get or create key failed: %v", err)
	}
	wrapped, err := h.Wrap([]byte("doomed"))
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	if err := p.DeleteKey(DefaultAlias); err != nil {
		t.Fatalf("delete key failed: %v", err)
	}
	if err := p.DeleteKey(DefaultAlias); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	ok, err := p.ContainsAlias(DefaultAlias)
	if err != nil {
		t.Fatalf("contains alias failed: %v", err)
	}
	if ok {
		t.Fatal("alias should be gone after delete")
	}

	// A new key is created on next use; blobs wrapped under the old key
	// must no longer unwrap.
	fresh, err := p.GetOrCreateKey(DefaultAlias)
	if err != nil {
		t.Fatalf("recreate key failed: %v", err)
	}
	if _, err := fresh.Unwrap(wrapped); !errors.Is(err, ErrUnwrapFailed) {
		t.Fatalf("expected ErrUnwrapFailed under rotated key, got %v", err)
	}
}

func TestFileProviderContainsAlias(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	ok, err := p.ContainsAlias(DefaultAlias)
	if err != nil {
		t.Fatalf("contains alias failed: %v", err)
	}
	if ok {
		t.Fatal("alias should not exist before first use")
	}
	if _, err := p.GetOrCreateKey(DefaultAlias); err != nil {
		t.Fatalf("get or create key failed: %v", err)
	}
	ok, err = p.ContainsAlias(DefaultAlias)
	if err != nil {
		t.Fatalf("contains alias failed: %v", err)
	}
	if !ok {
		t.Fatal("alias should exist after first use")
	}
}

func TestUnwrapRejectsTamperedBlob(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	h, err := p.GetOrCreateKey(DefaultAlias)
	if err != nil {
		t.Fatalf("get or create key failed: %v", err)
	}
	wrapped, err := h.Wrap([]byte("payload"))
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	tampered := append([]byte(nil), wrapped...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := h.Unwrap(tampered); !errors.Is(err, ErrUnwrapFailed) {
		t.Fatalf("expected ErrUnwrapFailed, got %v", err)
	}

	if _, err := h.Unwrap(wrapped[:8]); !errors.Is(err, canonical.ErrFormat) {
		t.Fatalf("expected ErrFormat for truncated blob, got %v", err)
	}
}

func TestAliasValidation(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	bad := []string{
		"",
		"Whisper_Keywrap",
		"has space",
		"semi;colon",
		"dot.dot",
		"path/traversal",
		"..",
		"x0123456789012345678901234567890123456789012345678901234567890123456789",
	}
	for _, alias := range bad {
		if _, err := p.GetOrCreateKey(alias); !errors.Is(err, canonical.ErrFormat) {
			t.Fatalf("GetOrCreateKey(%q): expected ErrFormat, got %v", alias, err)
		}
		if err := p.DeleteKey(alias); !errors.Is(err, canonical.ErrFormat) {
			t.Fatalf("DeleteKey(%q): expected ErrFormat, got %v", alias, err)
		}
		if _, err := p.ContainsAlias(alias); !errors.Is(err, canonical.ErrFormat) {
			t.Fatalf("ContainsAlias(%q): expected ErrFormat, got %v", alias, err)
		}
	}
}

func TestKeyMaterialIsPrivate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keystore")
	p := NewFileProvider(dir)
	if _, err := p.GetOrCreateKey(DefaultAlias); err != nil {
		t.Fatalf("get or create key failed: %v", err)
	}
	fsperm.AssertPrivateDir(t, dir)
	fsperm.AssertPrivateFile(t, filepath.Join(dir, DefaultAlias+".key"))
}

func TestKeyFileIsCanonicalText(t *testing.T) {
	dir := t.TempDir()
	p := NewFileProvider(dir)
	if _, err := p.GetOrCreateKey(DefaultAlias); err != nil {
		t.Fatalf("get or create key failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, DefaultAlias+".key"))
	if err != nil {
		t.Fatalf("read key file failed: %v", err)
	}
	key, err := canonical.DecodeLen(string(raw), kekSize)
	if err != nil {
		t.Fatalf("key file should hold canonical text of a 32-byte key: %v", err)
	}
	if len(key) != kekSize {
		t.Fatalf("key is %d bytes, want %d", len(key), kekSize)
	}
}
