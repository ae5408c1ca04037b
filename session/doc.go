// Package session provides Redis-backed persistence for server-side login
// sessions and their compact binary encoding.
//
// # Binary encoding
//
// Sessions are stored as a versioned binary blob. The leading byte is the
// schema version; unknown versions are rejected on read.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// interpret JWT tokens or decide inactivity expiry; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import otpgate or jwt (no upward imports).
//   - Store OTPs, passwords, or tokens in [Session] fields.
package session
