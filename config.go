package otpgate

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate/fieldcrypt"
)

// Config defines every tunable of the Engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT        JWTConfig
	Session    SessionConfig
	OTP        OTPConfig
	Lockout    LockoutConfig
	Encryption EncryptionConfig
	Register   RegisterConfig
	Timeouts   TimeoutConfig
	Mail       MailConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access and refresh token issuance.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls server-side session storage.
//
// InactivityTimeout is enforced by the Engine on every Authorize/Status
// call. AbsoluteLifetime is the Redis TTL written on each save.
type SessionConfig struct {
	RedisPrefix       string
	InactivityTimeout time.Duration
	AbsoluteLifetime  time.Duration
}

// OTPConfig controls the emailed one-time password. MaxVerifyAttempts of
// zero disables the wrong-guess counter.
//
// BackupVerifyAttempts caps wrong backup email confirmation codes within
// BackupVerifyWindow; zero disables it.
type OTPConfig struct {
	TTL               time.Duration
	MaxVerifyAttempts int
	AttemptWindow     time.Duration

	BackupVerifyAttempts int
	BackupVerifyWindow   time.Duration
}

// LockoutConfig mirrors limiters.LockoutPolicy.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

// RegisterConfig throttles account creation per client IP, read from the
// request context. MaxPerIP of zero disables it.
type RegisterConfig struct {
	MaxPerIP int
	Window   time.Duration
}

// EncryptionConfig carries the AES-256 key for phone and address fields.
type EncryptionConfig struct {
	Key []byte
}

// TimeoutConfig bounds every collaborator call.
type TimeoutConfig struct {
	Identity time.Duration
	Mail     time.Duration
	Storage  time.Duration
}

// MailConfig controls outgoing message wording.
type MailConfig struct {
	AppName string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds production guard rails.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			RedisPrefix:       "otps",
			InactivityTimeout: 30 * time.Minute,
			AbsoluteLifetime:  24 * time.Hour,
		},
		OTP: OTPConfig{
			TTL:               10 * time.Minute,
			MaxVerifyAttempts: 0,
			AttemptWindow:     10 * time.Minute,

			BackupVerifyAttempts: 5,
			BackupVerifyWindow:   time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
			Duration:  15 * time.Minute,
		},
		Register: RegisterConfig{
			MaxPerIP: 0,
			Window:   time.Hour,
		},
		Timeouts: TimeoutConfig{
			Identity: 5 * time.Second,
			Mail:     10 * time.Second,
			Storage:  3 * time.Second,
		},
		Mail: MailConfig{
			AppName: "otpgate",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the baseline configuration: 15m access tokens,
// 7d refresh tokens, 30m inactivity, 10m OTPs and 5/15m/15m lockout.
// Keys must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Encryption.Key = cloneBytes(cfg.Encryption.Key)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks structural constraints. Key parsing happens later in
// Builder.Build, which maps every failure to ErrConfiguration.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return fmt.Errorf("%s requires PrivateKey", c.JWT.SigningMethod)
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.InactivityTimeout <= 0 {
		return errors.New("Session InactivityTimeout must be > 0")
	}
	if c.Session.AbsoluteLifetime < c.Session.InactivityTimeout {
		return errors.New("Session AbsoluteLifetime must be >= InactivityTimeout")
	}

	// OTP
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxVerifyAttempts < 0 {
		return errors.New("OTP MaxVerifyAttempts must be >= 0")
	}
	if c.OTP.MaxVerifyAttempts > 0 && c.OTP.AttemptWindow <= 0 {
		return errors.New("OTP AttemptWindow must be > 0 when MaxVerifyAttempts is set")
	}
	if c.OTP.BackupVerifyAttempts < 0 {
		return errors.New("OTP BackupVerifyAttempts must be >= 0")
	}
	if c.OTP.BackupVerifyAttempts > 0 && c.OTP.BackupVerifyWindow <= 0 {
		return errors.New("OTP BackupVerifyWindow must be > 0 when BackupVerifyAttempts is set")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Window <= 0 || c.Lockout.Duration <= 0 {
		return errors.New("Lockout Window and Duration must be > 0")
	}

	// Register
	if c.Register.MaxPerIP < 0 {
		return errors.New("Register MaxPerIP must be >= 0")
	}
	if c.Register.MaxPerIP > 0 && c.Register.Window <= 0 {
		return errors.New("Register Window must be > 0 when MaxPerIP is set")
	}

	// Encryption
	if len(c.Encryption.Key) != fieldcrypt.KeySize {
		return fmt.Errorf("Encryption Key must be %d bytes", fieldcrypt.KeySize)
	}

	// Timeouts
	if c.Timeouts.Identity <= 0 || c.Timeouts.Mail <= 0 || c.Timeouts.Storage <= 0 {
		return errors.New("Timeouts must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.OTP.TTL > 15*time.Minute {
			return errors.New("ProductionMode requires OTP TTL <= 15m")
		}
		if c.Session.InactivityTimeout > time.Hour {
			return errors.New("ProductionMode requires Session InactivityTimeout <= 1h")
		}
	}

	return nil
}
