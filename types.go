package otpgate

import (
	"context"
	"time"

	"github.com/MrEthical07/otpgate/store"
)

// Identity is what the external identity provider knows about a user.
type Identity struct {
	UserID        string
	EmailVerified bool
}

// IdentityProvider verifies primary credentials and registers new users.
//
// VerifyCredentials must return an error wrapping [ErrInvalidCredentials]
// for a wrong email/password pair. Any other error is treated as the
// provider being unavailable and never counts toward lockout.
//
// Register must return an error wrapping [ErrDuplicateEmail] when the email
// is taken.
type IdentityProvider interface {
	VerifyCredentials(ctx context.Context, email, password string) (Identity, error)
	Register(ctx context.Context, email, password, name string) (Identity, error)
}

// Mailer delivers plain-text messages.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc adapts a function to [Mailer].
type MailerFunc func(ctx context.Context, to, subject, body string) error

func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// Clock supplies the current time. Tests inject a fake clock to move
// through OTP, lockout and inactivity windows.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to [Clock].
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AuthState is the coarse session state reported by [Engine.Status].
type AuthState string

const (
	StateAnonymous     AuthState = "anonymous"
	StatePendingOTP    AuthState = "pending_otp"
	StateAuthenticated AuthState = "authenticated"
	StateExpired       AuthState = "expired"
)

// UserInfo is the authenticated user projection held in a session.
type UserInfo struct {
	ID    string
	Email string
	Name  string
}

// TokenPair is an access token plus its refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginRequest starts a login. An empty or unknown SessionID creates a new
// session.
type LoginRequest struct {
	SessionID string
	Email     string
	Password  string
	UseBackup bool
}

// LoginResult always reports RequireOTP; a login never authenticates on its own.
type LoginResult struct {
	SessionID   string
	RequireOTP  bool
	Destination string
}

type ResendOTPRequest struct {
	SessionID string
	UseBackup bool
}

type VerifyOTPRequest struct {
	SessionID string
	OTP       string
}

type VerifyOTPResult struct {
	SessionID string
	User      UserInfo
	Tokens    TokenPair
}

// AuthorizeRequest carries the session to check and, optionally, the access
// token presented alongside it.
type AuthorizeRequest struct {
	SessionID   string
	AccessToken string
}

// AuthResult is returned by [Engine.Authorize] and injected into request
// contexts by middleware.
type AuthResult struct {
	UserID       string
	Email        string
	Name         string
	SessionID    string
	LastActivity time.Time
}

type StatusRequest struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// AuthStatus mirrors the check-auth endpoint.
type AuthStatus struct {
	State            AuthState
	User             *UserInfo
	LastActivity     time.Time
	HasAccessToken   bool
	AccessTokenValid bool
	HasRefreshToken  bool
}

type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

type RegisterResult struct {
	UserID        string
	EmailVerified bool
}

// SensitiveUpdate is a partial update of the encrypted profile fields. A nil
// pointer leaves the field unchanged; a pointer to "" clears it.
type SensitiveUpdate = store.SensitiveUpdate

// SensitivePresence reports which encrypted fields hold data.
type SensitivePresence = store.SensitivePresence

// SensitivePlaintext is returned only by [Engine.DecryptSensitiveData].
type SensitivePlaintext = store.SensitivePlaintext

// LoginAttempt is one row of the append-only attempt log.
type LoginAttempt = store.LoginAttempt
