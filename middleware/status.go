package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/otpgate"
)

var statusByError = []struct {
	err    error
	status int
}{
	{otpgate.ErrAccountLocked, http.StatusLocked},
	{otpgate.ErrInvalidCredentials, http.StatusUnauthorized},
	{otpgate.ErrInvalidToken, http.StatusUnauthorized},
	{otpgate.ErrSessionExpired, http.StatusUnauthorized},
	{otpgate.ErrNotAuthenticated, http.StatusUnauthorized},
	{otpgate.ErrEmailNotVerified, http.StatusForbidden},
	{otpgate.ErrNoPendingLogin, http.StatusBadRequest},
	{otpgate.ErrInvalidOTP, http.StatusBadRequest},
	{otpgate.ErrNoVerifiedBackupEmail, http.StatusBadRequest},
	{otpgate.ErrInvalidBackupCode, http.StatusBadRequest},
	{otpgate.ErrInvalidRequest, http.StatusBadRequest},
	{otpgate.ErrUserNotFound, http.StatusNotFound},
	{otpgate.ErrDuplicateEmail, http.StatusConflict},
	{otpgate.ErrOTPRateLimited, http.StatusTooManyRequests},
	{otpgate.ErrRateLimited, http.StatusTooManyRequests},
	{otpgate.ErrIntegrity, http.StatusInternalServerError},
}

// StatusFor maps an engine error to an HTTP status. Retryable errors are
// 503; anything unclassified is 500.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, s := range statusByError {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	if otpgate.IsRetryable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
