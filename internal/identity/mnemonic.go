package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")

// GenerateMnemonic produces a fresh recovery phrase of 12 or 24 words
// (128 or 256 bits of entropy).
func GenerateMnemonic(words int) (string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return "", fmt.Errorf("%w: mnemonic must be 12 or 24 words, got %d", ErrInvariant, words)
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic maps every user spelling of a phrase to the single form
// the derivation uses: NFKD, lowercase, surrounding whitespace stripped and
// internal runs collapsed to one space. Derivation and validation always
// operate on the normalized form, so "Abandon  About" and "abandon about"
// recover the same account.
func NormalizeMnemonic(mnemonic string) string {
	decomposed := norm.NFKD.String(mnemonic)
	return strings.ToLower(strings.Join(strings.Fields(decomposed), " "))
}

// ValidateMnemonic reports whether the phrase is well formed: known
// wordlist words and a valid checksum.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}
