// Package jwt issues and verifies the access/refresh token pair.
//
// Access tokens carry uid and email and live for minutes. Refresh tokens
// carry uid only and live for days. Both are signed with one process-wide
// secret (HS256) or key pair (Ed25519); there is no revocation list, so
// rotating the signing key (KeyID + VerifyKeys) is the only way to cut off
// outstanding tokens.
//
// Verify* helpers collapse every failure into a nil result so callers treat
// nil uniformly as "re-authenticate".
package jwt
