package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, Config{Prefix: "ov", Limit: limit, Window: window}), mr
}

func TestLimiterHitExceedsBudget(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := l.Hit(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("hit %d: unexpected error %v", i, err)
		}
		if n != i {
			t.Fatalf("hit %d: expected count %d, got %d", i, i, n)
		}
	}
	if err := l.Check(ctx, "user@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited from Check, got %v", err)
	}
	if _, err := l.Hit(ctx, "user@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited from Hit, got %v", err)
	}
	if err := l.Check(ctx, "other@example.com"); err != nil {
		t.Fatalf("unrelated identifier should not be limited: %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if _, err := l.Hit(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("first hit: %v", err)
	}
	if _, err := l.Hit(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit on second hit, got %v", err)
	}

	mr.FastForward(61 * time.Second)

	if _, err := l.Hit(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}
}

func TestLimiterResetAndCount(t *testing.T) {
	l, _ := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	_, _ = l.Hit(ctx, "u1")
	_, _ = l.Hit(ctx, "u1")
	if n, err := l.Count(ctx, "u1"); err != nil || n != 2 {
		t.Fatalf("expected count 2, got %d (%v)", n, err)
	}
	if err := l.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Count(ctx, "u1"); n != 0 {
		t.Fatalf("expected zero after reset, got %d", n)
	}
}

func TestLimiterKeysAreHashed(t *testing.T) {
	l, mr := newTestLimiter(t, 5, time.Minute)
	if _, err := l.Hit(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("hit: %v", err)
	}
	for _, k := range mr.Keys() {
		if k == "ov:user@example.com" {
			t.Fatalf("raw identifier leaked into key %q", k)
		}
	}
}

func TestLimiterDisabled(t *testing.T) {
	var nilLimiter *Limiter
	if _, err := nilLimiter.Hit(context.Background(), "x"); err != nil {
		t.Fatalf("nil limiter should be a no-op: %v", err)
	}
	l := New(nil, Config{Prefix: "api"})
	if l.Enabled() {
		t.Fatalf("zero limit should disable limiter")
	}
	if err := l.Check(context.Background(), "x"); err != nil {
		t.Fatalf("disabled limiter should not error: %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 5, time.Minute)
	mr.Close()
	if _, err := l.Hit(context.Background(), "u"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
