package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 15 * time.Minute
	defaultLockoutDuration  = 15 * time.Minute
)

var (
	// ErrLockoutUnavailable indicates the attempt log could not be read or the
	// lock could not be written.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockoutStore is the slice of the credential store the policy needs. The
// login-attempt log is the source of truth for failure counts.
type LockoutStore interface {
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error)
	LockAccount(ctx context.Context, email string, until, now time.Time) error
}

// LockoutPolicy locks an account once Threshold credential failures land
// inside Window. The lock lasts Duration and is cleared lazily on the next
// lock check after it expires.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

// DefaultLockoutPolicy returns 5 failures / 15 minutes / 15 minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: defaultLockoutThreshold,
		Window:    defaultLockoutWindow,
		Duration:  defaultLockoutDuration,
	}
}

// Validate rejects non-positive thresholds and durations.
func (p LockoutPolicy) Validate() error {
	if p.Threshold <= 0 {
		return errors.New("lockout threshold must be > 0")
	}
	if p.Window <= 0 {
		return errors.New("lockout window must be > 0")
	}
	if p.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}
	return nil
}

// LockoutDecision is the outcome of [LockoutPolicy.Apply].
type LockoutDecision struct {
	Failures int
	Locked   bool
	Until    time.Time
}

// Apply counts the failures recorded for email since now-Window and locks
// the account when the threshold is reached. The caller must have appended
// the current failure to the attempt log before calling Apply.
func (p LockoutPolicy) Apply(ctx context.Context, store LockoutStore, email string, now time.Time) (LockoutDecision, error) {
	if store == nil || email == "" {
		return LockoutDecision{}, nil
	}

	failures, err := store.CountRecentFailures(ctx, email, now.Add(-p.Window))
	if err != nil {
		return LockoutDecision{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	decision := LockoutDecision{Failures: failures}
	if failures < p.Threshold {
		return decision, nil
	}

	until := now.Add(p.Duration)
	if err := store.LockAccount(ctx, email, until, now); err != nil {
		return decision, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	decision.Locked = true
	decision.Until = until
	return decision, nil
}

// Remaining reports how many more failures email may accumulate before the
// policy locks it, given the current failure count.
func (p LockoutPolicy) Remaining(failures int) int {
	if failures >= p.Threshold {
		return 0
	}
	return p.Threshold - failures
}
