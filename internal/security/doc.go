// Package security derives the security posture report exposed by
// Engine.SecurityReport and logged by the daemon at startup.
//
// # What this package must NOT do
//
//   - Import otpgate or read configuration itself. Callers pass a flat
//     [ReportInput].
package security
