package fieldcrypt

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(bytes.Repeat([]byte{0x42}, KeySize))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := testCipher(t)
	for _, in := range []string{"x", "+1 555 0100", "12 Rue de la Paix, Paris", strings.Repeat("é", 300)} {
		sealed, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", in, err)
		}
		if sealed == nil || sealed.Empty() {
			t.Fatalf("Encrypt(%q) returned empty sealed value", in)
		}
		out, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if out != in {
			t.Fatalf("round trip mismatch: got %q want %q", out, in)
		}
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	c := testCipher(t)
	a, _ := c.Encrypt("same")
	b, _ := c.Encrypt("same")
	if a.IV == b.IV {
		t.Fatal("expected distinct IVs per call")
	}
	if a.Ciphertext == b.Ciphertext {
		t.Fatal("expected distinct ciphertexts per call")
	}
	if len(a.IV) != IVSize*2 || len(a.Tag) != TagSize*2 {
		t.Fatalf("unexpected hex lengths iv=%d tag=%d", len(a.IV), len(a.Tag))
	}
}

func TestEmptyValuesShortCircuit(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Encrypt("")
	if err != nil || sealed != nil {
		t.Fatalf("Encrypt(\"\") = %v, %v; want nil, nil", sealed, err)
	}
	out, err := c.Decrypt(nil)
	if err != nil || out != "" {
		t.Fatalf("Decrypt(nil) = %q, %v", out, err)
	}
	out, err = c.Decrypt(&Sealed{})
	if err != nil || out != "" {
		t.Fatalf("Decrypt(empty) = %q, %v", out, err)
	}
}

func flipHex(t *testing.T, s string, idx int) string {
	t.Helper()
	raw, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[idx%len(raw)] ^= 0x01
	return hex.EncodeToString(raw)
}

// upperFirstLetter rewrites one hex digit in uppercase. The bytes decode the
// same but the stored spelling no longer matches what Encrypt wrote.
func upperFirstLetter(t *testing.T, s string) string {
	t.Helper()
	i := strings.IndexAny(s, "abcdef")
	if i < 0 {
		t.Fatalf("no hex letter in %q", s)
	}
	return s[:i] + strings.ToUpper(s[i:i+1]) + s[i+1:]
}

func TestBitFlipFailsIntegrity(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Encrypt("sensitive value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	cases := map[string]func(s Sealed) Sealed{
		"ciphertext": func(s Sealed) Sealed { s.Ciphertext = flipHex(t, s.Ciphertext, 3); return s },
		"iv":         func(s Sealed) Sealed { s.IV = flipHex(t, s.IV, 0); return s },
		"tag":        func(s Sealed) Sealed { s.Tag = flipHex(t, s.Tag, 15); return s },
		"upper hex":  func(s Sealed) Sealed { s.Ciphertext = upperFirstLetter(t, s.Ciphertext); return s },
		"upper tag":  func(s Sealed) Sealed { s.Tag = upperFirstLetter(t, s.Tag); return s },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tampered := mutate(*sealed)
			out, err := c.Decrypt(&tampered)
			if !errors.Is(err, ErrIntegrity) {
				t.Fatalf("expected ErrIntegrity, got %v", err)
			}
			if out != "" {
				t.Fatalf("expected no plaintext, got %q", out)
			}
		})
	}
}

func TestMalformedInputFailsIntegrity(t *testing.T) {
	c := testCipher(t)
	sealed, _ := c.Encrypt("value")

	cases := []Sealed{
		{Ciphertext: sealed.Ciphertext, IV: sealed.IV},
		{Ciphertext: sealed.Ciphertext, Tag: sealed.Tag},
		{IV: sealed.IV, Tag: sealed.Tag},
		{Ciphertext: "zz", IV: sealed.IV, Tag: sealed.Tag},
		{Ciphertext: sealed.Ciphertext, IV: sealed.IV[:10], Tag: sealed.Tag},
		{Ciphertext: sealed.Ciphertext, IV: sealed.IV, Tag: sealed.Tag[:8]},
	}
	for i, s := range cases {
		if _, err := c.Decrypt(&s); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("case %d: expected ErrIntegrity, got %v", i, err)
		}
	}
}

func TestWrongKeyFailsIntegrity(t *testing.T) {
	c := testCipher(t)
	other, err := New(bytes.Repeat([]byte{0x07}, KeySize))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sealed, _ := c.Encrypt("value")
	if _, err := other.Decrypt(sealed); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("New(nil): expected ErrInvalidKey, got %v", err)
	}
	if _, err := New(make([]byte, 16)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("New(16 bytes): expected ErrInvalidKey, got %v", err)
	}
	if _, err := NewFromHex(""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("NewFromHex(empty): expected ErrInvalidKey, got %v", err)
	}
	if _, err := NewFromHex("not-hex"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("NewFromHex(not hex): expected ErrInvalidKey, got %v", err)
	}
	if _, err := NewFromHex(strings.Repeat("ab", KeySize)); err != nil {
		t.Fatalf("NewFromHex(valid): %v", err)
	}
}
