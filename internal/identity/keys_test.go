package identity

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDeriveIdentityVectors(t *testing.T) {
	keys, err := DeriveIdentity(vectorMnemonic, "")
	if err != nil {
		t.Fatalf("derive identity failed: %v", err)
	}
	defer keys.Wipe()

	if want := mustHex(t, "b0320981778570beffbb299b237642115b80c714ff2fafd39b9989dc94ba8a38"); !bytes.Equal(keys.Encryption.Public, want) {
		t.Fatalf("encryption public key mismatch:\n got %x\nwant %x", keys.Encryption.Public, want)
	}
	if want := mustHex(t, "bd930cbbf856bb76f2c25c64062a2944cc6065ba54b9af7242d2bfbde5d7c95b"); !bytes.Equal(keys.Signing.Public, want) {
		t.Fatalf("signing public key mismatch:\n got %x\nwant %x", keys.Signing.Public, want)
	}
	if want := mustHex(t, "de3d0fda0659df936a71ee48cf6519da84b285344916511b5244d2ac36c23ff2"); !bytes.Equal(keys.ContactsKey, want) {
		t.Fatalf("contacts key mismatch:\n got %x\nwant %x", keys.ContactsKey, want)
	}

	// X25519 private key is the purpose seed verbatim; Ed25519 private key
	// is the 64-byte seed||public form.
	if want := mustHex(t, "08851144b1bdf8b99c563bd408f4a613943fef2d9120397573932bd9833e0149"); !bytes.Equal(keys.Encryption.Private, want) {
		t.Fatalf("encryption private key should be the purpose seed:\n got %x\nwant %x", keys.Encryption.Private, want)
	}
	if len(keys.Signing.Private) != 64 {
		t.Fatalf("signing private key is %d bytes, want 64", len(keys.Signing.Private))
	}
	if !bytes.Equal(keys.Signing.Private[32:], keys.Signing.Public) {
		t.Fatal("signing private key should end with the public key")
	}
}

func TestDeriveIdentityDeterministic(t *testing.T) {
	k1, err := DeriveIdentity(vectorMnemonicAlt, "")
	if err != nil {
		t.Fatalf("derive 1 failed: %v", err)
	}
	k2, err := DeriveIdentity(vectorMnemonicAlt, "")
	if err != nil {
		t.Fatalf("derive 2 failed: %v", err)
	}
	if !bytes.Equal(k1.Encryption.Public, k2.Encryption.Public) {
		t.Fatal("encryption keys should be deterministic")
	}
	if !bytes.Equal(k1.Signing.Public, k2.Signing.Public) {
		t.Fatal("signing keys should be deterministic")
	}
	if !bytes.Equal(k1.ContactsKey, k2.ContactsKey) {
		t.Fatal("contacts keys should be deterministic")
	}

	if want := mustHex(t, "6bc9442d2bfab8449ef8f8b2046a9e9357ede45164b16040d254634658298b31"); !bytes.Equal(k1.Encryption.Public, want) {
		t.Fatalf("encryption public key mismatch:\n got %x\nwant %x", k1.Encryption.Public, want)
	}
	if want := mustHex(t, "bf97a536bb8a0b33e5ef3a66a57c8fc9d7432596ab33f19b316f78a0a8141172"); !bytes.Equal(k1.Signing.Public, want) {
		t.Fatalf("signing public key mismatch:\n got %x\nwant %x", k1.Signing.Public, want)
	}
}

func TestKeyPairsRejectWrongSeedSize(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		seed := make([]byte, n)
		if _, err := EncryptionKeyPairFromSeed(seed); !errors.Is(err, ErrInvariant) {
			t.Fatalf("encryption: expected ErrInvariant for %d-byte seed, got %v", n, err)
		}
		if _, err := SigningKeyPairFromSeed(seed); !errors.Is(err, ErrInvariant) {
			t.Fatalf("signing: expected ErrInvariant for %d-byte seed, got %v", n, err)
		}
	}
}

func TestBuildWhisperID(t *testing.T) {
	signPub := mustHex(t, "bd930cbbf856bb76f2c25c64062a2944cc6065ba54b9af7242d2bfbde5d7c95b")
	id, err := BuildWhisperID(signPub)
	if err != nil {
		t.Fatalf("build whisper id failed: %v", err)
	}
	if id != "wsp1CtbC5xVvE1WDKJCEZxhsiQ78bTAxwBxfXKZ2T6d2F4mL" {
		t.Fatalf("whisper id mismatch: %q", id)
	}
	if !strings.HasPrefix(id, whisperIDPrefix) {
		t.Fatalf("whisper id should start with %q: %q", whisperIDPrefix, id)
	}

	if _, err := BuildWhisperID(signPub[:16]); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant for short key, got %v", err)
	}
}

func TestFingerprintShape(t *testing.T) {
	pub := mustHex(t, "bd930cbbf856bb76f2c25c64062a2944cc6065ba54b9af7242d2bfbde5d7c95b")
	fp := Fingerprint(pub)
	groups := strings.Split(fp, " ")
	if len(groups) != 4 {
		t.Fatalf("fingerprint should have 4 groups: %q", fp)
	}
	for _, g := range groups {
		if len(g) != 4 {
			t.Fatalf("fingerprint group %q should be 4 hex digits", g)
		}
	}
	if Fingerprint(pub) != fp {
		t.Fatal("fingerprint should be deterministic")
	}
	other := mustHex(t, "6bc9442d2bfab8449ef8f8b2046a9e9357ede45164b16040d254634658298b31")
	if Fingerprint(other) == fp {
		t.Fatal("distinct keys should not share a fingerprint")
	}
}

func TestDerivedKeysWipe(t *testing.T) {
	keys, err := DeriveIdentity(vectorMnemonic, "")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	encPriv := keys.Encryption.Private
	signPriv := keys.Signing.Private
	contacts := keys.ContactsKey
	keys.Wipe()

	for _, b := range [][]byte{encPriv, signPriv, contacts} {
		for _, v := range b {
			if v != 0 {
				t.Fatal("wipe should zero all private material")
			}
		}
	}

	intact := false
	for _, v := range keys.Signing.Public {
		if v != 0 {
			intact = true
			break
		}
	}
	if !intact {
		t.Fatal("wipe should leave public keys intact")
	}
}
