// Package middleware adapts otpgate.Engine.Authorize to net/http.
//
// # Guards
//
//   - [RequireSession]: live session required; the access token is checked
//     when present.
//   - [RequireStrict]: live session and a matching access token required.
//
// The session ID is read from the "sid" cookie and the access token from an
// Authorization bearer header or the "accessToken" cookie. A passing request
// carries its [otpgate.AuthResult] in the context; see [AuthResultFromContext].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Set or clear cookies. That is the HTTP API's job.
package middleware
