package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds fixed-window limiter tuning parameters. A Limit of zero
// disables the limiter.
type Config struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Limiter counts hits per identifier in fixed windows using Redis
// INCR + EXPIRE.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enabled reports whether the limiter counts anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.Limit > 0 && l.redis != nil
}

// Hit records one hit for id and returns ErrRateLimited once the window
// budget is exceeded.
func (l *Limiter) Hit(ctx context.Context, id string) (int, error) {
	if !l.Enabled() {
		return 0, nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(id), l.config.Window)
	if err != nil {
		return 0, err
	}
	if count > int64(l.config.Limit) {
		return int(count), ErrRateLimited
	}

	return int(count), nil
}

// Check returns ErrRateLimited if id has already used its budget,
// without counting a hit.
func (l *Limiter) Check(ctx context.Context, id string) error {
	if !l.Enabled() {
		return nil
	}
	return l.checkCounter(ctx, l.key(id), l.config.Limit)
}

// Count returns the hits recorded for id in the current window.
// Missing keys return zero.
func (l *Limiter) Count(ctx context.Context, id string) (int, error) {
	if !l.Enabled() {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter for id.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
