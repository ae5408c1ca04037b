// Package store is the credential store: user records, the append-only
// login-attempt log, lock state, OTP state, backup-email state, and sealed
// sensitive fields.
//
// The Store is a stateless service bound to a *sqlx.DB. Every operation takes
// its timestamps from the caller, so the same queries run against Postgres
// (pgx) and SQLite (modernc) and stay deterministic under test.
//
// Mutations that must not race (OTP consume, backup-email verify, lazy lock
// clear) are single conditional UPDATE statements; the row count decides the
// winner.
package store
