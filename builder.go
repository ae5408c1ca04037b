package otpgate

import (
	"fmt"

	"github.com/MrEthical07/otpgate/fieldcrypt"
	internalaudit "github.com/MrEthical07/otpgate/internal/audit"
	"github.com/MrEthical07/otpgate/internal/limiters"
	"github.com/MrEthical07/otpgate/jwt"
	"github.com/MrEthical07/otpgate/session"
	"github.com/MrEthical07/otpgate/store"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/MrEthical07/otpgate"

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *sqlx.DB

	identity IdentityProvider
	mailer   Mailer
	clock    Clock

	logger         *zap.Logger
	auditSink      AuditSink
	tracerProvider trace.TracerProvider

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions and the optional OTP attempt counter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDB sets the credential-store database. The schema must be migrated
// with store.Migrate before the engine is used.
func (b *Builder) WithDB(db *sqlx.DB) *Builder {
	b.db = db
	return b
}

func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithClock overrides the wall clock. Intended for tests.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. Auditing still has to be
// enabled in Config.Audit.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets the provider for engine spans. The default is
// the global provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Build validates the configuration, parses key material and returns a
// ready Engine. Every failure wraps ErrConfiguration.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, configErr("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, configErr("redis client required")
	}
	if b.db == nil {
		return nil, configErr("database handle required")
	}
	if b.identity == nil {
		return nil, configErr("identity provider required")
	}
	if b.mailer == nil {
		return nil, configErr("mailer required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, configErr("%v", err)
	}

	// -------- FIELD ENCRYPTION --------
	cipher, err := fieldcrypt.New(cfg.Encryption.Key)
	if err != nil {
		return nil, configErr("%v", err)
	}

	// -------- LOCKOUT --------
	policy := limiters.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
		Duration:  cfg.Lockout.Duration,
	}
	if err := policy.Validate(); err != nil {
		return nil, configErr("%v", err)
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           clock.Now,
	})
	if err != nil {
		return nil, configErr("%v", err)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("otpgate")

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		store:      store.New(b.db),
		sessions:   session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.AbsoluteLifetime),
		jwtManager: jm,
		cipher:     cipher,
		identity:   b.identity,
		mailer:     b.mailer,
		clock:      clock,
		lockout:    policy,
		otpLimiter: limiters.NewOTPLimiter(b.redis, limiters.OTPLimiterConfig{
			MaxAttempts: cfg.OTP.MaxVerifyAttempts,
			Window:      cfg.OTP.AttemptWindow,
		}),
		backupLimiter: limiters.NewBackupVerifyLimiter(b.redis, limiters.BackupVerifyConfig{
			MaxAttempts: cfg.OTP.BackupVerifyAttempts,
			Window:      cfg.OTP.BackupVerifyWindow,
		}),
		registerLimiter: limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
			MaxPerIP: cfg.Register.MaxPerIP,
			Window:   cfg.Register.Window,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		sugar:   logger.Sugar(),
		tracer:  tp.Tracer(tracerName),
	}
	engine.flow = engine.buildFlows()

	b.built = true

	return engine, nil
}
