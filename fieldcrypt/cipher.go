package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the required AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length used for every sealed field.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

var (
	// ErrInvalidKey is returned when the key is missing or not 32 bytes.
	ErrInvalidKey = errors.New("fieldcrypt: invalid key")
	// ErrIntegrity is returned when a sealed value is malformed or fails authentication.
	ErrIntegrity = errors.New("fieldcrypt: integrity check failed")
)

// Sealed is the stored form of one encrypted field.
type Sealed struct {
	Ciphertext string `db:"ciphertext" json:"ciphertext"`
	IV         string `db:"iv" json:"iv"`
	Tag        string `db:"tag" json:"tag"`
}

// Empty reports whether s carries no data at all.
func (s *Sealed) Empty() bool {
	return s == nil || (s.Ciphertext == "" && s.IV == "" && s.Tag == "")
}

// Cipher encrypts and decrypts field values with a single AES-256-GCM key.
//
// Cipher is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Cipher from a raw 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// NewFromHex builds a Cipher from a 64-character hex key.
func NewFromHex(hexKey string) (*Cipher, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not hex", ErrInvalidKey)
	}
	return New(key)
}

// Encrypt seals plaintext under a fresh random IV.
//
// An empty plaintext returns nil without invoking the cipher.
func (c *Cipher) Encrypt(plaintext string) (*Sealed, error) {
	if plaintext == "" {
		return nil, nil
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return nil, fmt.Errorf("fieldcrypt: read iv: %w", err)
	}

	out := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(out) - TagSize

	return &Sealed{
		Ciphertext: hex.EncodeToString(out[:split]),
		IV:         hex.EncodeToString(iv),
		Tag:        hex.EncodeToString(out[split:]),
	}, nil
}

// Decrypt opens a sealed field.
//
// A nil or all-empty value returns "" and no error. Any partial, malformed,
// or tampered value returns ErrIntegrity and never partial plaintext.
func (c *Cipher) Decrypt(s *Sealed) (string, error) {
	if s.Empty() {
		return "", nil
	}
	if s.Ciphertext == "" || s.IV == "" || s.Tag == "" {
		return "", ErrIntegrity
	}

	ciphertext, ok := decodeHex(s.Ciphertext)
	if !ok {
		return "", ErrIntegrity
	}
	iv, ok := decodeHex(s.IV)
	if !ok || len(iv) != IVSize {
		return "", ErrIntegrity
	}
	tag, ok := decodeHex(s.Tag)
	if !ok || len(tag) != TagSize {
		return "", ErrIntegrity
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}

// decodeHex accepts only the lowercase form Encrypt writes, so a stored
// field has exactly one valid spelling.
func decodeHex(v string) ([]byte, bool) {
	b, err := hex.DecodeString(v)
	if err != nil || hex.EncodeToString(b) != v {
		return nil, false
	}
	return b, true
}
