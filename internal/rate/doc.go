// Package rate provides Redis-backed fixed-window counters used by the
// limiters in internal/limiters and the HTTP per-IP limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Each
// [Limiter] owns a key prefix; identifiers are hashed before use:
//   - ov: OTP verification attempts per pending user
//   - bv: wrong backup-email codes per user
//   - rg: registrations per client IP
//   - evc, evr: activation code failures and resends per email
//   - otpgate:api: HTTP requests per client IP
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the otpgate module.
package rate
