package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// DefaultMaxPasswordBytes caps password input when Config.MaxPasswordBytes
// is zero. Argon2 cost is paid per byte, so the cap bounds work per attempt.
const DefaultMaxPasswordBytes = 1024

var (
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length")
	// ErrMalformedHash wraps every PHC parse failure.
	ErrMalformedHash = errors.New("malformed password hash")
)

const (
	algorithm = "argon2id"

	minPasswordBytes = 10
	minMemoryKiB     = 8 * 1024
	minSaltBytes     = 16
	minKeyBytes      = 16
)

var b64 = base64.RawStdEncoding

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns the parameters used by the local identity provider:
// 64 MiB, three passes, two lanes.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate reports the first parameter below the supported floor.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKiB:
		return fmt.Errorf("password: memory must be >= %d KiB", minMemoryKiB)
	case c.Time < 1:
		return errors.New("password: time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password: parallelism must be >= 1")
	case c.SaltLength < minSaltBytes:
		return fmt.Errorf("password: salt length must be >= %d", minSaltBytes)
	case c.KeyLength < minKeyBytes:
		return fmt.Errorf("password: key length must be >= %d", minKeyBytes)
	case c.MaxPasswordBytes < 0:
		return errors.New("password: max password bytes must be >= 0")
	}
	return nil
}

// params is the cost section of a PHC string plus its decoded payload.
type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p params) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
}

// Argon2 hashes and verifies passwords. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id hash of password. Bytes are used
// exactly as given, with no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case len(password) < minPasswordBytes:
		return "", ErrPasswordTooShort
	case len(password) > a.config.MaxPasswordBytes:
		return "", ErrPasswordTooLong
	}

	p := params{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
		key:         make([]byte, a.config.KeyLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	p.key = p.derive(password)
	return encode(p), nil
}

// Verify reports whether password matches encoded in constant time. A
// malformed hash wraps ErrMalformedHash rather than reporting a mismatch.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	p, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// or a different key length than the current config.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	p, err := decode(encoded)
	if err != nil {
		return false, err
	}
	weaker := p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.parallelism < a.config.Parallelism ||
		uint32(len(p.key)) != a.config.KeyLength
	return weaker, nil
}

func encode(p params) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version, p.memory, p.time, p.parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, reason)
}

func decode(encoded string) (params, error) {
	// "", algorithm, version, costs, salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params{}, malformed("expected 5 sections")
	}
	if parts[1] != algorithm {
		return params{}, malformed("unsupported algorithm " + parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params{}, malformed("version")
	}
	if version != argon2.Version {
		return params{}, malformed(fmt.Sprintf("unsupported version %d", version))
	}

	var p params
	var lanes uint32
	n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &lanes)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, lanes) != parts[3] {
		return params{}, malformed("cost parameters")
	}
	if p.memory < minMemoryKiB || p.time < 1 || lanes < 1 || lanes > 255 {
		return params{}, malformed("cost parameters out of range")
	}
	p.parallelism = uint8(lanes)

	if p.salt, err = decodeSegment(parts[4]); err != nil || len(p.salt) < minSaltBytes {
		return params{}, malformed("salt")
	}
	if p.key, err = decodeSegment(parts[5]); err != nil || len(p.key) == 0 {
		return params{}, malformed("key")
	}
	return p, nil
}

// decodeSegment accepts both padded and unpadded base64 so hashes written
// by other PHC encoders still verify.
func decodeSegment(s string) ([]byte, error) {
	return b64.DecodeString(strings.TrimRight(s, "="))
}
