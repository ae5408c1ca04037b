package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrVerificationRateLimited        = errors.New("verification rate limited")
	ErrVerificationLimiterUnavailable = errors.New("verification limiter unavailable")
)

// EmailVerificationConfig bounds the account activation code: wrong
// confirmations and resend requests per email within Window. A zero limit
// disables that counter.
type EmailVerificationConfig struct {
	MaxConfirmAttempts int
	MaxResends         int
	Window             time.Duration
}

func DefaultEmailVerificationConfig() EmailVerificationConfig {
	return EmailVerificationConfig{
		MaxConfirmAttempts: 5,
		MaxResends:         3,
		Window:             time.Hour,
	}
}

type EmailVerificationLimiter struct {
	confirm *rate.Limiter
	resend  *rate.Limiter
}

func NewEmailVerificationLimiter(redisClient redis.UniversalClient, cfg EmailVerificationConfig) *EmailVerificationLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &EmailVerificationLimiter{
		confirm: rate.New(redisClient, rate.Config{Prefix: "evc", Limit: cfg.MaxConfirmAttempts, Window: cfg.Window}),
		resend:  rate.New(redisClient, rate.Config{Prefix: "evr", Limit: cfg.MaxResends, Window: cfg.Window}),
	}
}

// CheckConfirm fails once email has used its wrong-code budget.
func (l *EmailVerificationLimiter) CheckConfirm(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return mapVerification(l.confirm.Check(ctx, email))
}

func (l *EmailVerificationLimiter) RecordConfirmFailure(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	_, err := l.confirm.Hit(ctx, email)
	return mapVerification(err)
}

// HitResend counts one resend request.
func (l *EmailVerificationLimiter) HitResend(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	_, err := l.resend.Hit(ctx, email)
	return mapVerification(err)
}

// Reset clears the wrong-code counter once a fresh code is issued or the
// account is activated. The resend counter runs out its window.
func (l *EmailVerificationLimiter) Reset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	if err := l.confirm.Reset(ctx, email); err != nil {
		return mapVerification(err)
	}
	return nil
}

func mapVerification(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrVerificationRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrVerificationLimiterUnavailable, err)
	}
}
