package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/otpgate/session"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Login   LoginDeps
	OTP     OTPDeps
	Verify  VerifyDeps
	Session SessionDeps
	Refresh RefreshDeps
}

// AuditFunc emits one audit event. meta may be nil.
type AuditFunc func(ctx context.Context, event string, success bool, userID, email, sessionID string, err error, meta func() map[string]string)

// Sessions is the session persistence surface shared by the flows.
// Load returns (nil, nil) for an empty, malformed or unknown id.
type Sessions struct {
	Load   func(context.Context, string) (*session.Session, error)
	New    func(time.Time) (*session.Session, error)
	Save   func(context.Context, *session.Session) error
	Delete func(context.Context, string) error
	// Touch sets lastActivity on a stored session without rewriting the
	// rest of it. It reports false when the session no longer exists.
	Touch func(ctx context.Context, sessionID string, lastActivity int64) (bool, error)
}

func (s Sessions) ready() bool {
	return s.Load != nil && s.Save != nil
}

// User is the flow-local view of a credential-store record.
type User struct {
	ID             string
	Email          string
	Name           string
	BackupEmail    string
	BackupVerified bool
}

// Identity is the flow-local identity provider result.
type Identity struct {
	UserID        string
	EmailVerified bool
}

func noopAudit(context.Context, string, bool, string, string, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopWarn(string, ...any) {}

// MaskEmail hides most of the local part: "alice@example.com" becomes
// "a***e@example.com".
func MaskEmail(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	local, domain := addr[:at], addr[at:]
	switch len(local) {
	case 1:
		return "*" + domain
	case 2:
		return local[:1] + "*" + domain
	default:
		return local[:1] + "***" + local[len(local)-1:] + domain
	}
}
