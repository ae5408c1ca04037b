// Package internal holds helpers private to otpgate: random session IDs and
// one-time codes, and the keyed identifier hash used in Redis key names.
//
// Sub-packages:
//
//   - audit: async event dispatch and sinks
//   - flows: the state transitions behind every Engine operation
//   - limiters: lockout policy over the attempt log and OTP attempt counters
//   - rate: Redis fixed-window counters
//   - security: the security posture report
//   - config: daemon environment configuration
//   - logging: zap construction and log file rotation
//   - telemetry: OTLP trace provider setup
//   - httpapi: the gorilla/mux HTTP routes
package internal
