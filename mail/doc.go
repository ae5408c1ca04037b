// Package mail provides [Mailer] adapters and the plain-text messages the
// engine sends.
//
// # Adapters
//
//   - [SMTPMailer]: delivers through an SMTP relay with STARTTLS and PLAIN auth.
//   - [LogMailer]: writes messages to a zap logger, for development.
//   - [Outbox]: records messages in memory, for tests and demos.
//
// All adapters honour context cancellation.
package mail
