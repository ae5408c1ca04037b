// Package limiters provides the domain policies that decide when a login or
// an OTP submission must be refused.
//
// # Limiters
//
//   - [LockoutPolicy]: counts invalid-credential failures in the persistent
//     attempt log and locks the account once the threshold is reached.
//   - [OTPLimiter]: opt-in per-user cap on wrong OTP submissions, built on
//     the internal/rate fixed-window counters.
//   - [BackupVerifyLimiter]: per-user cap on wrong backup-email codes.
//   - [RegistrationLimiter]: per-address cap on account creation.
//   - [EmailVerificationLimiter]: per-email caps on wrong activation codes
//     and on resend requests, used by the local identity provider.
//
// The Redis-backed limiters are nil-safe and treat a zero limit as
// disabled.
//
// # What this package must NOT do
//
//   - Import otpgate or any sibling internal package except internal/rate.
//   - Emit audit events. Flow functions decide consequences.
package limiters
