// Package fieldcrypt seals individual profile fields (phone, address) with
// AES-256-GCM before they reach the credential store.
//
// # Format
//
// Every call to [Cipher.Encrypt] draws a fresh 16-byte IV. The GCM tag is
// split from the ciphertext so the three parts can live in separate columns.
// All parts are lowercase hex.
//
// # Empty values
//
// An empty plaintext seals to nil and an all-empty [Sealed] opens to "". This
// keeps "no data" distinct from "data that fails to open", which always
// yields [ErrIntegrity].
//
// # What this package must NOT do
//
//   - Log or return plaintext on failure paths.
//   - Rotate or version keys (one process-wide key).
package fieldcrypt
