package internaldefs

import (
	"github.com/MrEthical07/otpgate"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   otpgate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   otpgate.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: otpgate.MetricLoginSuccess, Name: "otpgate_login_success_total", Help: "Logins that reached the OTP step."},
	{ID: otpgate.MetricLoginFailure, Name: "otpgate_login_failure_total", Help: "Logins rejected by the identity provider or failed by its outage."},
	{ID: otpgate.MetricLoginLocked, Name: "otpgate_login_locked_total", Help: "Login attempts refused because the account was locked."},
	{ID: otpgate.MetricLoginUnverified, Name: "otpgate_login_unverified_total", Help: "Logins refused for an unverified email."},
	{ID: otpgate.MetricAccountLocked, Name: "otpgate_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: otpgate.MetricOTPSent, Name: "otpgate_otp_sent_total", Help: "One-time codes dispatched."},
	{ID: otpgate.MetricOTPSendFailure, Name: "otpgate_otp_send_failure_total", Help: "One-time codes that could not be dispatched."},
	{ID: otpgate.MetricOTPVerifySuccess, Name: "otpgate_otp_verify_success_total", Help: "Successful OTP verifications."},
	{ID: otpgate.MetricOTPVerifyFailure, Name: "otpgate_otp_verify_failure_total", Help: "Wrong, expired or replayed OTP submissions."},
	{ID: otpgate.MetricOTPRateLimited, Name: "otpgate_otp_rate_limited_total", Help: "OTP submissions refused by the attempt limiter."},
	{ID: otpgate.MetricRefreshSuccess, Name: "otpgate_refresh_success_total", Help: "Successful refresh operations."},
	{ID: otpgate.MetricRefreshFailure, Name: "otpgate_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: otpgate.MetricSessionCreated, Name: "otpgate_session_created_total", Help: "Created sessions."},
	{ID: otpgate.MetricSessionExpired, Name: "otpgate_session_expired_total", Help: "Sessions destroyed for inactivity."},
	{ID: otpgate.MetricLogout, Name: "otpgate_logout_total", Help: "Logout operations."},
	{ID: otpgate.MetricAuthorizeSuccess, Name: "otpgate_authorize_success_total", Help: "Requests that passed the activity check."},
	{ID: otpgate.MetricAuthorizeFailure, Name: "otpgate_authorize_failure_total", Help: "Requests rejected by the activity check."},
	{ID: otpgate.MetricRegisterSuccess, Name: "otpgate_register_success_total", Help: "Successful registrations."},
	{ID: otpgate.MetricRegisterDuplicate, Name: "otpgate_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: otpgate.MetricBackupEmailAdded, Name: "otpgate_backup_email_added_total", Help: "Backup email addresses added."},
	{ID: otpgate.MetricBackupEmailVerified, Name: "otpgate_backup_email_verified_total", Help: "Backup email addresses verified."},
	{ID: otpgate.MetricBackupEmailFailure, Name: "otpgate_backup_email_failure_total", Help: "Failed backup email operations."},
	{ID: otpgate.MetricSensitiveUpdate, Name: "otpgate_sensitive_update_total", Help: "Encrypted profile updates."},
	{ID: otpgate.MetricSensitiveDecrypt, Name: "otpgate_sensitive_decrypt_total", Help: "Explicit decrypts of encrypted profile fields."},
	{ID: otpgate.MetricIntegrityFailure, Name: "otpgate_integrity_failure_total", Help: "Encrypted fields that failed authentication."},
	{ID: otpgate.MetricRateLimitHit, Name: "otpgate_rate_limit_hit_total", Help: "HTTP requests denied by the per-IP limiter."},
}

var HistogramDefs = []HistogramDef{
	{ID: otpgate.MetricLoginLatency, Name: "otpgate_login_latency_seconds", Help: "Login latency histogram."},
	{ID: otpgate.MetricAuthorizeLatency, Name: "otpgate_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
