package otpgate

import (
	"context"
	"errors"
)

var (
	// ErrAccountLocked is returned while an account is locked after repeated credential failures.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials is returned when the identity provider rejects the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned when the provider reports the primary email as unverified.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrNoPendingLogin is returned by OTP operations on a session without a pending user.
	ErrNoPendingLogin = errors.New("no pending login")
	// ErrInvalidOTP is returned for a wrong, expired or already-consumed OTP.
	ErrInvalidOTP = errors.New("invalid or expired otp")
	// ErrInvalidToken is returned for a token that fails signature, type, expiry or subject checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionExpired is returned when an authenticated session exceeded the inactivity timeout.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoVerifiedBackupEmail is returned when a backup destination is requested but none is verified.
	ErrNoVerifiedBackupEmail = errors.New("no verified backup email")
	// ErrIntegrity is returned when an encrypted field fails authentication on decrypt.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrConfiguration is returned by Builder.Build for invalid configuration or key material.
	ErrConfiguration = errors.New("invalid configuration")

	ErrUserNotFound        = errors.New("user not found")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrInvalidBackupCode   = errors.New("invalid backup email code")
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
	ErrMailDispatchFailed  = errors.New("mail dispatch failed")
	ErrStorageUnavailable  = errors.New("credential store unavailable")
	ErrSessionUnavailable  = errors.New("session backend unavailable")
	ErrOTPRateLimited      = errors.New("otp attempts rate limited")
	ErrEngineNotReady      = errors.New("engine not initialized")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrRateLimited         = errors.New("too many requests")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAccountLocked, "account_locked"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrEmailNotVerified, "email_not_verified"},
	{ErrNoPendingLogin, "no_pending_login"},
	{ErrInvalidOTP, "invalid_otp"},
	{ErrInvalidToken, "invalid_token"},
	{ErrSessionExpired, "session_expired"},
	{ErrNoVerifiedBackupEmail, "no_verified_backup_email"},
	{ErrIntegrity, "integrity_failure"},
	{ErrConfiguration, "configuration"},
	{ErrUserNotFound, "user_not_found"},
	{ErrNotAuthenticated, "not_authenticated"},
	{ErrInvalidBackupCode, "invalid_backup_code"},
	{ErrIdentityUnavailable, "identity_unavailable"},
	{ErrMailDispatchFailed, "mail_dispatch_failed"},
	{ErrStorageUnavailable, "storage_unavailable"},
	{ErrSessionUnavailable, "session_unavailable"},
	{ErrOTPRateLimited, "otp_rate_limited"},
	{ErrEngineNotReady, "engine_not_ready"},
	{ErrDuplicateEmail, "duplicate_email"},
	{ErrInvalidRequest, "invalid_request"},
	{ErrRateLimited, "rate_limited"},
}

// ErrorCode returns a stable machine-readable code for err, "" for nil and
// "internal" for anything unclassified.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "internal"
}

// IsRetryable reports whether err came from a collaborator that was slow or
// unreachable. The same request may succeed later.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrIdentityUnavailable),
		errors.Is(err, ErrMailDispatchFailed),
		errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrSessionUnavailable):
		return true
	}
	return false
}
