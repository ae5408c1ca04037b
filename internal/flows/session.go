package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/otpgate/session"
)

// AuthorizeResult is the flow-local result of an activity check.
type AuthorizeResult struct {
	UserID       string
	Email        string
	Name         string
	SessionID    string
	LastActivity time.Time
}

// State names reported by RunStatus.
const (
	StateAnonymous     = "anonymous"
	StatePendingOTP    = "pending_otp"
	StateAuthenticated = "authenticated"
	StateExpired       = "expired"
)

// StatusResult is the flow-local check-auth response.
type StatusResult struct {
	State            string
	User             *User
	LastActivity     time.Time
	HasAccessToken   bool
	AccessTokenValid bool
	HasRefreshToken  bool
}

// SessionMetrics carries metric IDs needed by the session flows.
type SessionMetrics struct {
	AuthorizeSuccess int
	AuthorizeFailure int
	SessionExpired   int
	Logout           int
}

// SessionEvents carries audit event names used by the session flows.
type SessionEvents struct {
	SessionExpired string
	Logout         string
	TokenMismatch  string
}

// SessionErrors carries host-level sentinel errors used by the session flows.
type SessionErrors struct {
	EngineNotReady   error
	NotAuthenticated error
	SessionExpired   error
	InvalidToken     error
}

// SessionDeps captures authorize, status and logout dependencies.
type SessionDeps struct {
	Now               func() time.Time
	InactivityTimeout time.Duration

	Sessions Sessions

	// VerifyAccess returns the uid of a valid access token, or "" and false.
	VerifyAccess func(token string) (string, bool)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics SessionMetrics
	Events  SessionEvents
	Errors  SessionErrors
}

func (d *SessionDeps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = noopMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noopAudit
	}
	if d.Warn == nil {
		d.Warn = noopWarn
	}
}

// idle reports whether the session has been inactive for longer than the
// timeout. A session exactly at the limit is still active.
func idle(sess *session.Session, now time.Time, timeout time.Duration) bool {
	return now.UnixMilli()-sess.LastActivity > timeout.Milliseconds()
}

// expire destroys an idle session. Delete failures are only logged; the
// caller reports the session as expired either way.
func expire(ctx context.Context, sess *session.Session, deps SessionDeps) {
	if deps.Sessions.Delete != nil {
		if err := deps.Sessions.Delete(ctx, sess.SessionID); err != nil {
			deps.Warn("expired session not deleted", "session_id", sess.SessionID, "error", err)
		}
	}
	deps.MetricInc(deps.Metrics.SessionExpired)
	deps.EmitAudit(ctx, deps.Events.SessionExpired, false, sess.UserID, sess.Email, sess.SessionID, deps.Errors.SessionExpired, nil)
}

// RunAuthorize is the activity transition: it rejects anonymous and idle
// sessions, cross-checks the optional access token against the session
// user, and bumps lastActivity.
func RunAuthorize(ctx context.Context, sessionID, accessToken string, deps SessionDeps) (*AuthorizeResult, error) {
	deps.defaults()
	if !deps.Sessions.ready() || deps.VerifyAccess == nil {
		return nil, deps.Errors.EngineNotReady
	}

	sess, err := deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Authenticated() {
		deps.MetricInc(deps.Metrics.AuthorizeFailure)
		return nil, deps.Errors.NotAuthenticated
	}

	now := deps.Now()
	if idle(sess, now, deps.InactivityTimeout) {
		expire(ctx, sess, deps)
		return nil, deps.Errors.SessionExpired
	}

	if accessToken != "" {
		uid, ok := deps.VerifyAccess(accessToken)
		if !ok || uid != sess.UserID {
			deps.MetricInc(deps.Metrics.AuthorizeFailure)
			deps.EmitAudit(ctx, deps.Events.TokenMismatch, false, sess.UserID, sess.Email, sess.SessionID, deps.Errors.InvalidToken, nil)
			return nil, deps.Errors.InvalidToken
		}
	}

	sess.LastActivity = now.UnixMilli()
	if deps.Sessions.Touch != nil {
		ok, err := deps.Sessions.Touch(ctx, sess.SessionID, sess.LastActivity)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Logged out or expired after the load above.
			deps.MetricInc(deps.Metrics.AuthorizeFailure)
			return nil, deps.Errors.NotAuthenticated
		}
	} else if err := deps.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.AuthorizeSuccess)
	return &AuthorizeResult{
		UserID:       sess.UserID,
		Email:        sess.Email,
		Name:         sess.Name,
		SessionID:    sess.SessionID,
		LastActivity: time.UnixMilli(sess.LastActivity),
	}, nil
}

// RunStatus reports the session state and token presence without touching
// lastActivity. An idle authenticated session is destroyed and reported
// as expired.
func RunStatus(ctx context.Context, sessionID, accessToken, refreshToken string, deps SessionDeps) (*StatusResult, error) {
	deps.defaults()
	if !deps.Sessions.ready() || deps.VerifyAccess == nil {
		return nil, deps.Errors.EngineNotReady
	}

	out := &StatusResult{
		State:           StateAnonymous,
		HasAccessToken:  accessToken != "",
		HasRefreshToken: refreshToken != "",
	}
	if accessToken != "" {
		_, out.AccessTokenValid = deps.VerifyAccess(accessToken)
	}

	sess, err := deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case sess.Authenticated():
		if idle(sess, deps.Now(), deps.InactivityTimeout) {
			expire(ctx, sess, deps)
			out.State = StateExpired
			return out, nil
		}
		out.State = StateAuthenticated
		out.User = &User{ID: sess.UserID, Email: sess.Email, Name: sess.Name}
		out.LastActivity = time.UnixMilli(sess.LastActivity)
	case sess.Pending():
		out.State = StatePendingOTP
	}
	return out, nil
}

// RunLogout destroys the session unconditionally. Unknown ids succeed.
func RunLogout(ctx context.Context, sessionID string, deps SessionDeps) error {
	deps.defaults()
	if deps.Sessions.Delete == nil {
		return deps.Errors.EngineNotReady
	}
	if sessionID == "" {
		return nil
	}
	if err := deps.Sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, "", "", sessionID, nil, nil)
	return nil
}
