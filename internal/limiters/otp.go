package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate/internal/rate"
	"github.com/redis/go-redis/v9"
)

const defaultOTPAttemptWindow = 10 * time.Minute

var (
	ErrOTPRateLimited = errors.New("otp rate limited")
	ErrOTPUnavailable = errors.New("otp limiter unavailable")
)

// OTPLimiterConfig holds configurable thresholds for OTP verification.
// MaxAttempts of zero disables the limiter.
type OTPLimiterConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// OTPLimiter caps wrong OTP submissions per pending user. It is opt-in:
// without it an OTP may be guessed until it expires.
type OTPLimiter struct {
	counter *rate.Limiter
}

// NewOTPLimiter creates an OTP verification limiter. A zero Window falls
// back to the OTP lifetime of 10 minutes.
func NewOTPLimiter(redisClient redis.UniversalClient, cfg OTPLimiterConfig) *OTPLimiter {
	window := cfg.Window
	if window <= 0 {
		window = defaultOTPAttemptWindow
	}
	return &OTPLimiter{
		counter: rate.New(redisClient, rate.Config{Prefix: "ov", Limit: cfg.MaxAttempts, Window: window}),
	}
}

func (l *OTPLimiter) Check(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return mapRate(l.counter.Check(ctx, userID))
}

func (l *OTPLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	_, err := l.counter.Hit(ctx, userID)
	return mapRate(err)
}

// Reset is called when a new OTP is issued or the current one is consumed.
func (l *OTPLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return mapRate(l.counter.Reset(ctx, userID))
}

func mapRate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrOTPRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}
}
