package otpgate

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrAccountLocked, "account_locked"},
		{fmt.Errorf("%w: smtp 451", ErrMailDispatchFailed), "mail_dispatch_failed"},
		{fmt.Errorf("wrapped: %w", ErrInvalidOTP), "invalid_otp"},
		{ErrRateLimited, "rate_limited"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range errorCodes {
		if seen[c.code] {
			t.Fatalf("duplicate error code %q", c.code)
		}
		seen[c.code] = true
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		ErrIdentityUnavailable,
		fmt.Errorf("%w: dial tcp", ErrStorageUnavailable),
		ErrSessionUnavailable,
		ErrMailDispatchFailed,
		fmt.Errorf("identity: %w", context.DeadlineExceeded),
	}
	for _, err := range retryable {
		if !IsRetryable(err) {
			t.Fatalf("expected %v to be retryable", err)
		}
	}

	final := []error{
		nil,
		ErrAccountLocked,
		ErrInvalidCredentials,
		ErrInvalidOTP,
		ErrIntegrity,
		ErrConfiguration,
		ErrSessionExpired,
	}
	for _, err := range final {
		if IsRetryable(err) {
			t.Fatalf("expected %v not to be retryable", err)
		}
	}
}
