package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate/internal/rate"
	"github.com/redis/go-redis/v9"
)

const defaultRegistrationWindow = time.Hour

var (
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	ErrRegistrationUnavailable = errors.New("registration limiter unavailable")
)

// RegistrationConfig caps account creation per client IP. MaxPerIP of zero
// disables the limiter.
type RegistrationConfig struct {
	MaxPerIP int
	Window   time.Duration
}

// RegistrationLimiter counts registration attempts per client address.
// Requests without an address are not counted.
type RegistrationLimiter struct {
	counter *rate.Limiter
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	window := cfg.Window
	if window <= 0 {
		window = defaultRegistrationWindow
	}
	return &RegistrationLimiter{
		counter: rate.New(redisClient, rate.Config{Prefix: "rg", Limit: cfg.MaxPerIP, Window: window}),
	}
}

// Enforce records one attempt for ip and fails once the window budget is
// spent.
func (l *RegistrationLimiter) Enforce(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	_, err := l.counter.Hit(ctx, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRegistrationRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
	}
}
