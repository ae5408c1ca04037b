// Package identity provides a self-hosted otpgate.IdentityProvider.
//
// [Local] keeps one JSON record per email in Redis with an Argon2id password
// hash from package password. Registration uses SETNX, so two concurrent
// registrations of one address cannot both succeed.
//
// When a mailer is configured, new accounts start unverified and receive a
// six digit code; [Local.VerifyEmail] activates them. Wrong codes and resend
// requests are counted per email and refused with
// [ErrVerificationRateLimited] once spent. Without a mailer, accounts are
// created verified.
package identity
