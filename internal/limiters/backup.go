package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate/internal/rate"
	"github.com/redis/go-redis/v9"
)

const defaultBackupVerifyWindow = time.Hour

var (
	ErrBackupVerifyRateLimited = errors.New("backup email verification rate limited")
	ErrBackupVerifyUnavailable = errors.New("backup email verification limiter unavailable")
)

// BackupVerifyConfig caps wrong backup email confirmation codes per user.
// MaxAttempts of zero disables the limiter.
type BackupVerifyConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// BackupVerifyLimiter counts wrong confirmation codes for a pending backup
// address. Adding a new address resets the count.
type BackupVerifyLimiter struct {
	counter *rate.Limiter
}

func NewBackupVerifyLimiter(redisClient redis.UniversalClient, cfg BackupVerifyConfig) *BackupVerifyLimiter {
	window := cfg.Window
	if window <= 0 {
		window = defaultBackupVerifyWindow
	}
	return &BackupVerifyLimiter{
		counter: rate.New(redisClient, rate.Config{Prefix: "bv", Limit: cfg.MaxAttempts, Window: window}),
	}
}

func (l *BackupVerifyLimiter) Check(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return mapBackupRate(l.counter.Check(ctx, userID))
}

func (l *BackupVerifyLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	_, err := l.counter.Hit(ctx, userID)
	return mapBackupRate(err)
}

func (l *BackupVerifyLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return mapBackupRate(l.counter.Reset(ctx, userID))
}

func mapBackupRate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrBackupVerifyRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrBackupVerifyUnavailable, err)
	}
}
