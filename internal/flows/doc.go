// Package flows contains pure-function orchestrators for every Engine
// operation that walks the session state machine.
//
// Each flow function (RunLogin, RunVerifyOTP, RunAuthorize, etc.) accepts a
// typed dependency struct and returns results without side-effects beyond
// those dependencies. Every step short-circuits on the first failure, so a
// transition either commits or leaves the session untouched.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, session store,
// identity provider, mailer, token manager, audit dispatcher, and metrics.
// They do NOT own any of these resources; ownership stays with the Engine,
// which also applies collaborator timeouts and error wrapping.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import otpgate (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
package flows
