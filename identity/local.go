package identity

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate"
	"github.com/MrEthical07/otpgate/internal"
	"github.com/MrEthical07/otpgate/internal/limiters"
	"github.com/MrEthical07/otpgate/mail"
	"github.com/MrEthical07/otpgate/password"
	"github.com/MrEthical07/otpgate/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrInvalidVerificationCode is returned by VerifyEmail for a wrong code
	// or an already verified account.
	ErrInvalidVerificationCode = errors.New("invalid email verification code")
	// ErrVerificationRateLimited is returned once an email has used its
	// wrong-code or resend budget.
	ErrVerificationRateLimited = errors.New("too many email verification requests")
)

const defaultPrefix = "otpgate:identity"

type record struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Hash      string `json:"hash"`
	Verified  bool   `json:"verified"`
	CodeHash  string `json:"code_hash,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Local is a Redis-backed identity provider.
type Local struct {
	redis   redis.UniversalClient
	prefix  string
	hasher  *password.Argon2
	mailer  otpgate.Mailer
	appName string
	logger  *zap.Logger
	now     func() time.Time
	limits  limiters.EmailVerificationConfig
	limiter *limiters.EmailVerificationLimiter

	// dummyHash is verified against for unknown emails so that a miss costs
	// the same as a wrong password.
	dummyHash string
}

// Option configures a [Local] provider.
type Option func(*Local)

// WithPrefix sets the Redis key prefix. The default is "otpgate:identity".
func WithPrefix(prefix string) Option {
	return func(l *Local) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithVerificationMailer makes new accounts start unverified and mails them
// a verification code.
func WithVerificationMailer(m otpgate.Mailer, appName string) Option {
	return func(l *Local) {
		l.mailer = m
		if appName != "" {
			l.appName = appName
		}
	}
}

// WithVerificationLimits bounds wrong activation codes and resend requests
// per email within window. A zero limit disables that counter.
func WithVerificationLimits(maxConfirm, maxResends int, window time.Duration) Option {
	return func(l *Local) {
		l.limits = limiters.EmailVerificationConfig{
			MaxConfirmAttempts: maxConfirm,
			MaxResends:         maxResends,
			Window:             window,
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLocal builds a provider hashing with cfg.
func NewLocal(rdb redis.UniversalClient, cfg password.Config, opts ...Option) (*Local, error) {
	if rdb == nil {
		return nil, errors.New("identity: redis client required")
	}
	hasher, err := password.NewArgon2(cfg)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	l := &Local{
		redis:   rdb,
		prefix:  defaultPrefix,
		hasher:  hasher,
		appName: "otpgate",
		logger:  zap.NewNop(),
		now:     time.Now,
		limits:  limiters.DefaultEmailVerificationConfig(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("identity")
	l.limiter = limiters.NewEmailVerificationLimiter(rdb, l.limits)

	l.dummyHash, err = hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	return l, nil
}

func (l *Local) key(email string) string {
	return l.prefix + ":" + internal.HashIdentifier(email)
}

func (l *Local) load(ctx context.Context, email string) (*record, error) {
	data, err := l.redis.Get(ctx, l.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("identity: decode record: %w", err)
	}
	return &rec, nil
}

func (l *Local) save(ctx context.Context, email string, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return l.redis.Set(ctx, l.key(email), data, redis.KeepTTL).Err()
}

// VerifyCredentials checks email and password. Unknown emails and wrong
// passwords both wrap otpgate.ErrInvalidCredentials.
func (l *Local) VerifyCredentials(ctx context.Context, email, pass string) (otpgate.Identity, error) {
	email = store.NormalizeEmail(email)
	rec, err := l.load(ctx, email)
	if err != nil {
		return otpgate.Identity{}, err
	}

	hash := l.dummyHash
	if rec != nil {
		hash = rec.Hash
	}
	ok, err := l.hasher.Verify(pass, hash)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return otpgate.Identity{}, fmt.Errorf("identity: %w", otpgate.ErrInvalidCredentials)
	}
	if err != nil {
		return otpgate.Identity{}, fmt.Errorf("identity: verify hash: %w", err)
	}
	if rec == nil || !ok {
		return otpgate.Identity{}, fmt.Errorf("identity: %w", otpgate.ErrInvalidCredentials)
	}

	if upgrade, _ := l.hasher.NeedsUpgrade(rec.Hash); upgrade {
		l.rehash(ctx, email, rec, pass)
	}
	return otpgate.Identity{UserID: rec.ID, EmailVerified: rec.Verified}, nil
}

func (l *Local) rehash(ctx context.Context, email string, rec *record, pass string) {
	hash, err := l.hasher.Hash(pass)
	if err != nil {
		return
	}
	rec.Hash = hash
	if err := l.save(ctx, email, rec); err != nil {
		l.logger.Warn("password rehash not saved", zap.String("user_id", rec.ID), zap.Error(err))
	}
}

// Register creates an account. A taken email wraps otpgate.ErrDuplicateEmail
// and a rejected password wraps otpgate.ErrInvalidRequest.
func (l *Local) Register(ctx context.Context, email, pass, name string) (otpgate.Identity, error) {
	email = store.NormalizeEmail(email)
	if email == "" {
		return otpgate.Identity{}, fmt.Errorf("identity: %w", otpgate.ErrInvalidRequest)
	}
	hash, err := l.hasher.Hash(pass)
	if err != nil {
		return otpgate.Identity{}, fmt.Errorf("identity: %w: %v", otpgate.ErrInvalidRequest, err)
	}

	rec := record{
		ID:        uuid.NewString(),
		Name:      name,
		Hash:      hash,
		Verified:  l.mailer == nil,
		CreatedAt: l.now().UnixMilli(),
	}
	var code string
	if l.mailer != nil {
		code, err = internal.NewVerificationCode()
		if err != nil {
			return otpgate.Identity{}, err
		}
		rec.CodeHash = hashCode(code)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return otpgate.Identity{}, err
	}
	created, err := l.redis.SetNX(ctx, l.key(email), data, 0).Result()
	if err != nil {
		return otpgate.Identity{}, err
	}
	if !created {
		return otpgate.Identity{}, fmt.Errorf("identity: %w", otpgate.ErrDuplicateEmail)
	}

	if l.mailer != nil {
		msg := mail.EmailVerificationMessage(l.appName, code)
		if err := l.mailer.Send(ctx, email, msg.Subject, msg.Body); err != nil {
			// The account exists; the user can ask for a new code.
			l.logger.Warn("verification mail not sent", zap.String("user_id", rec.ID), zap.Error(err))
		}
	}
	return otpgate.Identity{UserID: rec.ID, EmailVerified: rec.Verified}, nil
}

// VerifyEmail activates an account with the code mailed on registration.
func (l *Local) VerifyEmail(ctx context.Context, email, code string) error {
	email = store.NormalizeEmail(email)
	if err := l.limiter.CheckConfirm(ctx, email); err != nil {
		return verificationLimitErr(err)
	}
	rec, err := l.load(ctx, email)
	if err != nil {
		return err
	}
	if rec == nil || rec.Verified || rec.CodeHash == "" {
		return ErrInvalidVerificationCode
	}
	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(rec.CodeHash)) != 1 {
		if err := l.limiter.RecordConfirmFailure(ctx, email); err != nil && !errors.Is(err, limiters.ErrVerificationRateLimited) {
			l.logger.Warn("verification failure not counted", zap.String("user_id", rec.ID), zap.Error(err))
		}
		return ErrInvalidVerificationCode
	}
	rec.Verified = true
	rec.CodeHash = ""
	if err := l.save(ctx, email, rec); err != nil {
		return err
	}
	l.resetLimiter(ctx, email)
	return nil
}

// ResendVerification issues a fresh code for an unverified account.
func (l *Local) ResendVerification(ctx context.Context, email string) error {
	if l.mailer == nil {
		return errors.New("identity: no verification mailer configured")
	}
	email = store.NormalizeEmail(email)
	rec, err := l.load(ctx, email)
	if err != nil {
		return err
	}
	if rec == nil || rec.Verified {
		return ErrInvalidVerificationCode
	}
	if err := l.limiter.HitResend(ctx, email); err != nil {
		return verificationLimitErr(err)
	}
	code, err := internal.NewVerificationCode()
	if err != nil {
		return err
	}
	rec.CodeHash = hashCode(code)
	if err := l.save(ctx, email, rec); err != nil {
		return err
	}
	l.resetLimiter(ctx, email)
	msg := mail.EmailVerificationMessage(l.appName, code)
	return l.mailer.Send(ctx, email, msg.Subject, msg.Body)
}

func (l *Local) resetLimiter(ctx context.Context, email string) {
	if err := l.limiter.Reset(ctx, email); err != nil {
		l.logger.Warn("verification limiter not reset", zap.Error(err))
	}
}

func verificationLimitErr(err error) error {
	if errors.Is(err, limiters.ErrVerificationRateLimited) {
		return ErrVerificationRateLimited
	}
	return fmt.Errorf("identity: %w", err)
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
