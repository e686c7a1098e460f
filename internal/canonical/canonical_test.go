package canonical

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xff},
		[]byte("whisper"),
		bytes.Repeat([]byte{0xab}, 12),
		bytes.Repeat([]byte{0x5e}, 32),
		bytes.Repeat([]byte{0x01, 0x02, 0x03}, 21),
	}
	for _, c := range cases {
		text := Encode(c)
		if len(text)%4 != 0 {
			t.Fatalf("encode of %d bytes produced length %d, not a multiple of 4", len(c), len(text))
		}
		got, err := Decode(text)
		if err != nil {
			t.Fatalf("decode of %q failed: %v", text, err)
		}
		if !bytes.Equal(got, c) {
			t.Fatalf("round trip mismatch: got %x, want %x", got, c)
		}
		if Encode(got) != text {
			t.Fatalf("re-encode mismatch for %q", text)
		}
	}
}

func TestDecodeRejectsNonCanonicalText(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"bad length", "abc"},
		{"bad length with padding", "QUJDRA==="},
		{"padding first", "=QUJ"},
		{"padding inside", "QU=J"},
		{"all padding", "===="},
		{"non-alphabet character", "QUJ!"},
		{"url-safe alphabet", "-_-_"},
		{"space inside", "QUJD QUJD"},
		{"embedded newlines", "QUJD\r\n\r\n"},
		{"non-zero trailing bits", "QR=="},
		{"non-zero trailing bits long", "QUJDRR=="},
	}
	for _, c := range cases {
		if _, err := Decode(c.text); !errors.Is(err, ErrFormat) {
			t.Fatalf("%s: decode of %q returned %v, want ErrFormat", c.name, c.text, err)
		}
	}
}

func TestDecodeAcceptsOnlyExactCanonicalForm(t *testing.T) {
	b := []byte{0x41}
	text := Encode(b)
	if text != "QQ==" {
		t.Fatalf("unexpected canonical form %q", text)
	}
	got, err := Decode(text)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(got, b) {
		t.Fatalf("decode mismatch: got %x, want %x", got, b)
	}
	// Same byte, alternate spelling with dirty trailing bits.
	if _, err := Decode("QR=="); !errors.Is(err, ErrFormat) {
		t.Fatalf("alternate spelling accepted: %v", err)
	}
}

func TestDecodeLen(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x7f}, 12)
	text := Encode(nonce)

	got, err := DecodeLen(text, 12)
	if err != nil {
		t.Fatalf("decode with length failed: %v", err)
	}
	if !bytes.Equal(got, nonce) {
		t.Fatalf("decode mismatch: got %x, want %x", got, nonce)
	}
	if _, err := DecodeLen(text, 32); !errors.Is(err, ErrFormat) {
		t.Fatalf("wrong length accepted: %v", err)
	}
	if _, err := DecodeLen("not base64!", 12); !errors.Is(err, ErrFormat) {
		t.Fatalf("malformed text accepted: %v", err)
	}
}

func TestCheckLen(t *testing.T) {
	if err := CheckLen(make([]byte, 32), 32); err != nil {
		t.Fatalf("valid length rejected: %v", err)
	}
	if err := CheckLen(make([]byte, 31), 32); !errors.Is(err, ErrFormat) {
		t.Fatalf("short buffer accepted: %v", err)
	}
	if err := CheckLen(nil, 0); err != nil {
		t.Fatalf("empty buffer rejected: %v", err)
	}
}
