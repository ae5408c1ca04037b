// Package otpgate provides two-step web authentication: a password check
// against an external identity provider followed by a six digit code sent by
// email. A verified login yields a server-side session plus a JWT access and
// refresh token pair.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// otpgate is the public surface. It exposes [Engine], [Builder], [Config]
// and plain request/result types. Flow orchestration, rate limiting and
// audit dispatch live under internal/ and are never exported. Sessions are
// kept in Redis (package session); user records, OTPs, locks and the
// attempt log are kept in SQL (package store).
//
// # Session states
//
// A session is anonymous, pending an OTP, or authenticated. Login never
// authenticates directly. An authenticated session idle for longer than
// Session.InactivityTimeout is destroyed on its next use and reported as
// [ErrSessionExpired].
//
// # Errors
//
// Every failure wraps one of the exported sentinel errors. [ErrorCode] maps
// them to stable strings and [IsRetryable] separates collaborator outages
// from final rejections. [ErrConfiguration] is returned only by Build.
package otpgate
