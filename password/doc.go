// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash are unpadded base64; padded input is accepted on verify.
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// local identity provider can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. It is used by the local
// identity provider in package identity; the otpgate engine never sees
// passwords beyond passing them to its IdentityProvider.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other otpgate package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
