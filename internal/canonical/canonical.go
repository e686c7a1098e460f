// Package canonical implements the strict base64 text form used for every
// key and wrapped secret this subsystem persists. Exactly one text form
// exists per byte value: standard alphabet, = padding, no line breaks.
package canonical

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrFormat reports input that violates a canonical-form invariant: wrong
// base64 shape, a non-canonical encoding of otherwise valid bytes, or an
// unexpected byte length.
var ErrFormat = errors.New("canonical format violation")

// Encode returns the canonical text form of b.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode parses canonical text back into bytes. Any text that Encode could
// not have produced is rejected, so Encode(Decode(text)) == text for every
// accepted input.
func Decode(text string) ([]byte, error) {
	if len(text)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrFormat, len(text))
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	// Strict() only tightens trailing padding bits; the decoder still
	// swallows \r and \n. Re-encoding catches those and every other
	// non-canonical spelling in one step.
	if base64.StdEncoding.EncodeToString(raw) != text {
		return nil, fmt.Errorf("%w: non-canonical encoding", ErrFormat)
	}
	return raw, nil
}

// DecodeLen is Decode with an exact output length requirement, for fields
// whose byte size is fixed by the wire format.
func DecodeLen(text string, n int) ([]byte, error) {
	raw, err := Decode(text)
	if err != nil {
		return nil, err
	}
	if err := CheckLen(raw, n); err != nil {
		return nil, err
	}
	return raw, nil
}

// CheckLen fails unless len(b) == n.
func CheckLen(b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFormat, len(b), n)
	}
	return nil
}
