package identity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

// Frozen derivation vectors. The first two mnemonics are BIP39 reference
// phrases; the purpose seeds and keys below pin this module's exact HKDF
// parameters. If any of these tests fail, account recovery is broken for
// every existing user.
const (
	vectorMnemonic    = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	vectorMnemonicAlt = "legal winner thank year wave sausage worth useful legal winner thank yellow"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex constant: %v", err)
	}
	return b
}

func TestRootSeedVectors(t *testing.T) {
	cases := []struct {
		name       string
		mnemonic   string
		passphrase string
		root       string
	}{
		{
			name:     "abandon about, no passphrase",
			mnemonic: vectorMnemonic,
			root:     "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4",
		},
		{
			name:       "abandon about, TREZOR passphrase",
			mnemonic:   vectorMnemonic,
			passphrase: "TREZOR",
			root:       "c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04",
		},
		{
			name:     "legal winner, no passphrase",
			mnemonic: vectorMnemonicAlt,
			root:     "878386efb78845b3355bd15ea4d39ef97d179cb712b77d5c12b6be415fffeffe5f377ba02bf3f8544ab800b955e51fbff09828f682052a20faa6addbbddfb096",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RootSeed(tc.mnemonic, tc.passphrase)
			if len(got) != RootSeedSize {
				t.Fatalf("root seed is %d bytes, want %d", len(got), RootSeedSize)
			}
			if want := mustHex(t, tc.root); !bytes.Equal(got, want) {
				t.Fatalf("root seed mismatch:\n got %x\nwant %x", got, want)
			}
		})
	}
}

func TestRootSeedNormalizesInput(t *testing.T) {
	ragged := "  Abandon ABANDON abandon\tabandon abandon abandon\nabandon  abandon abandon abandon abandon About "
	if !bytes.Equal(RootSeed(ragged, ""), RootSeed(vectorMnemonic, "")) {
		t.Fatal("root seed should be invariant under case and whitespace differences")
	}
}

func TestPurposeSeedVectors(t *testing.T) {
	root := RootSeed(vectorMnemonic, "")
	cases := []struct {
		purpose string
		want    string
	}{
		{PurposeEncryption, "08851144b1bdf8b99c563bd408f4a613943fef2d9120397573932bd9833e0149"},
		{PurposeSigning, "457f5c29bc4ab25ea84b9d076fee560db80b9994725106594400e28672f3e5be"},
		{PurposeContacts, "de3d0fda0659df936a71ee48cf6519da84b285344916511b5244d2ac36c23ff2"},
	}
	for _, tc := range cases {
		t.Run(tc.purpose, func(t *testing.T) {
			seed, err := PurposeSeed(root, tc.purpose)
			if err != nil {
				t.Fatalf("purpose seed failed: %v", err)
			}
			if len(seed) != PurposeSeedSize {
				t.Fatalf("purpose seed is %d bytes, want %d", len(seed), PurposeSeedSize)
			}
			if want := mustHex(t, tc.want); !bytes.Equal(seed, want) {
				t.Fatalf("purpose seed mismatch:\n got %x\nwant %x", seed, want)
			}
		})
	}
}

func TestPurposeSeedPassphraseChangesEverything(t *testing.T) {
	root := RootSeed(vectorMnemonic, "TREZOR")
	enc, err := PurposeSeed(root, PurposeEncryption)
	if err != nil {
		t.Fatalf("purpose seed failed: %v", err)
	}
	sign, err := PurposeSeed(root, PurposeSigning)
	if err != nil {
		t.Fatalf("purpose seed failed: %v", err)
	}
	if want := mustHex(t, "4d24c378f64d5ebc37964ce8e2c13d5e727046493dcb7ca2588c688d948e437f"); !bytes.Equal(enc, want) {
		t.Fatalf("encryption seed mismatch:\n got %x\nwant %x", enc, want)
	}
	if want := mustHex(t, "161b42e4010b89168ea74c35a2693c868264aae5508234ffe161a411255f48d9"); !bytes.Equal(sign, want) {
		t.Fatalf("signing seed mismatch:\n got %x\nwant %x", sign, want)
	}
}

func TestPurposeSeedsAreIndependent(t *testing.T) {
	root := RootSeed(vectorMnemonic, "")
	seeds := make(map[string][]byte)
	for _, purpose := range []string{PurposeEncryption, PurposeSigning, PurposeContacts} {
		seed, err := PurposeSeed(root, purpose)
		if err != nil {
			t.Fatalf("purpose seed %q failed: %v", purpose, err)
		}
		for other, otherSeed := range seeds {
			if bytes.Equal(seed, otherSeed) {
				t.Fatalf("purpose seeds for %q and %q collide", purpose, other)
			}
		}
		seeds[purpose] = seed
	}
}

func TestPurposeSeedRejectsBrokenPreconditions(t *testing.T) {
	root := RootSeed(vectorMnemonic, "")
	if _, err := PurposeSeed(root[:RootSeedSize-1], PurposeEncryption); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant for short root, got %v", err)
	}
	if _, err := PurposeSeed(nil, PurposeEncryption); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant for nil root, got %v", err)
	}
	if _, err := PurposeSeed(root, ""); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant for empty purpose, got %v", err)
	}
}
