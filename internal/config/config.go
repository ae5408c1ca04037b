// Package config loads the otpgated daemon configuration from OTPGATE_*
// environment variables, after a best-effort .env file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate"
	"github.com/MrEthical07/otpgate/store"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Prefix = "OTPGATE_"

type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"true"`
	RateLimitPerIP int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`
	AppName        string `env:"APP_NAME" envDefault:"otpgate"`
	ProductionMode bool   `env:"PRODUCTION_MODE" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"`
	LogFile  string `env:"LOG_FILE"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"file:otpgate.db?_pragma=busy_timeout(5000)"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret     string `env:"JWT_SECRET"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	AccessTTL         time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL        time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"30m"`
	OTPTTL            time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPMaxAttempts    int           `env:"OTP_MAX_ATTEMPTS" envDefault:"0"`
	LockoutThreshold  int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindow     time.Duration `env:"LOCKOUT_WINDOW" envDefault:"15m"`
	LockoutDuration   time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`
	RegisterPerIP     int           `env:"REGISTER_PER_IP" envDefault:"10"`
	RegisterWindow    time.Duration `env:"REGISTER_WINDOW" envDefault:"1h"`

	SMTPAddr     string `env:"SMTP_ADDR"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	// RequireEmailVerification makes the local identity provider mail a
	// verification code on registration.
	RequireEmailVerification bool `env:"REQUIRE_EMAIL_VERIFICATION" envDefault:"false"`
	VerifyMaxAttempts        int  `env:"VERIFY_MAX_ATTEMPTS" envDefault:"5"`
	VerifyMaxResends         int  `env:"VERIFY_MAX_RESENDS" envDefault:"3"`

	AuditEnabled bool   `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditFile    string `env:"AUDIT_FILE"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"otpgated"`
}

// Load reads an optional .env file from the working directory and then the
// environment. A missing secret or malformed key wraps
// otpgate.ErrConfiguration.
func Load() (Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{Prefix: Prefix})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %v", otpgate.ErrConfiguration, err)
	}
	if err := cfg.check(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", otpgate.ErrConfiguration, err)
	}
	return cfg, nil
}

func (c Config) check() error {
	if len(c.JWTSecret) < 32 {
		return errors.New(Prefix + "JWT_SECRET must be at least 32 bytes")
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil || len(key) != 32 {
		return errors.New(Prefix + "ENCRYPTION_KEY must be 64 hex characters")
	}
	switch c.DBDriver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("%sDB_DRIVER %q not supported", Prefix, c.DBDriver)
	}
	return nil
}

// Engine maps the daemon settings onto otpgate.Config.
func (c Config) Engine() otpgate.Config {
	key, _ := hex.DecodeString(c.EncryptionKey)

	cfg := otpgate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Session.InactivityTimeout = c.InactivityTimeout
	if cfg.Session.AbsoluteLifetime < c.InactivityTimeout {
		cfg.Session.AbsoluteLifetime = c.InactivityTimeout
	}
	cfg.OTP.TTL = c.OTPTTL
	cfg.OTP.MaxVerifyAttempts = c.OTPMaxAttempts
	cfg.Lockout.Threshold = c.LockoutThreshold
	cfg.Lockout.Window = c.LockoutWindow
	cfg.Lockout.Duration = c.LockoutDuration
	cfg.Register.MaxPerIP = c.RegisterPerIP
	cfg.Register.Window = c.RegisterWindow
	cfg.Encryption.Key = key
	cfg.Mail.AppName = c.AppName
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Security.ProductionMode = c.ProductionMode
	return cfg
}
