package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/otpgate/store"
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	SessionID string
	Email     string
	Password  string
	UseBackup bool
}

// LoginResult is the flow-local login response shape. A successful login
// always ends in the pending-OTP state.
type LoginResult struct {
	SessionID   string
	Destination string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess    int
	LoginFailure    int
	LoginLocked     int
	LoginUnverified int
	AccountLocked   int
	SessionCreated  int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess  string
	LoginFailure  string
	LoginLocked   string
	AccountLocked string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady      error
	InvalidRequest      error
	AccountLocked       error
	InvalidCredentials  error
	EmailNotVerified    error
	IdentityUnavailable error
	UserNotFound        error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Now func() time.Time

	Sessions Sessions

	CheckLock            func(ctx context.Context, email string) (locked bool, until time.Time, err error)
	VerifyCredentials    func(ctx context.Context, email, password string) (Identity, error)
	IsInvalidCredentials func(error) bool
	RecordAttempt        func(ctx context.Context, email string, success bool, reason string) error
	ApplyLockout         func(ctx context.Context, email string) (locked bool, until time.Time, err error)
	NotifyLocked         func(ctx context.Context, email string, until time.Time)
	UserByEmail          func(ctx context.Context, email string) (User, error)
	IsNotFound           func(error) bool
	IssueOTP             func(ctx context.Context, user User, useBackup bool, sessionID string) (string, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin checks the lock, verifies primary credentials, records the
// attempt, applies the lockout policy, and on success moves the session to
// the pending-OTP state after mailing an OTP.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*LoginResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.IsNotFound == nil {
		deps.IsNotFound = func(error) bool { return false }
	}
	if !deps.Sessions.ready() ||
		deps.Sessions.New == nil ||
		deps.CheckLock == nil ||
		deps.VerifyCredentials == nil ||
		deps.IsInvalidCredentials == nil ||
		deps.RecordAttempt == nil ||
		deps.ApplyLockout == nil ||
		deps.UserByEmail == nil ||
		deps.IssueOTP == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := store.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, deps.Errors.InvalidRequest
	}

	sess, err := deps.Sessions.Load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	created := false
	if sess == nil {
		sess, err = deps.Sessions.New(deps.Now())
		if err != nil {
			return nil, err
		}
		created = true
	}

	record := func(success bool, reason string) {
		if err := deps.RecordAttempt(ctx, email, success, reason); err != nil {
			deps.Warn("login attempt not recorded", "reason", reason, "error", err)
		}
	}

	locked, until, err := deps.CheckLock(ctx, email)
	if err != nil {
		return nil, err
	}
	if locked {
		record(false, store.ReasonAccountLocked)
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginLocked, false, "", email, sess.SessionID, deps.Errors.AccountLocked, func() map[string]string {
			return map[string]string{"lock_until": until.UTC().Format(time.RFC3339)}
		})
		return nil, deps.Errors.AccountLocked
	}

	identity, err := deps.VerifyCredentials(ctx, email, req.Password)
	if err != nil {
		if deps.IsInvalidCredentials(err) {
			record(false, store.ReasonInvalidCredentials)
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", email, sess.SessionID, deps.Errors.InvalidCredentials, nil)

			nowLocked, lockedUntil, lockErr := deps.ApplyLockout(ctx, email)
			if lockErr != nil {
				deps.Warn("lockout policy not applied", "error", lockErr)
			}
			if nowLocked {
				deps.MetricInc(deps.Metrics.AccountLocked)
				deps.EmitAudit(ctx, deps.Events.AccountLocked, false, "", email, sess.SessionID, deps.Errors.AccountLocked, func() map[string]string {
					return map[string]string{"lock_until": lockedUntil.UTC().Format(time.RFC3339)}
				})
				if deps.NotifyLocked != nil {
					deps.NotifyLocked(ctx, email, lockedUntil)
				}
			}
			return nil, deps.Errors.InvalidCredentials
		}

		record(false, store.ReasonProviderUnavailable)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", email, sess.SessionID, deps.Errors.IdentityUnavailable, nil)
		deps.Warn("identity provider failed", "error", err)
		return nil, joinErr(deps.Errors.IdentityUnavailable, err)
	}

	if !identity.EmailVerified {
		record(true, store.ReasonEmailNotVerified)
		deps.MetricInc(deps.Metrics.LoginUnverified)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, identity.UserID, email, sess.SessionID, deps.Errors.EmailNotVerified, nil)
		return nil, deps.Errors.EmailNotVerified
	}
	record(true, store.ReasonOK)

	user, err := deps.UserByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound(err) {
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, identity.UserID, email, sess.SessionID, deps.Errors.UserNotFound, nil)
			return nil, deps.Errors.UserNotFound
		}
		return nil, err
	}
	if identity.UserID != "" && !strings.EqualFold(identity.UserID, user.ID) {
		deps.Warn("identity provider user id differs from credential store", "provider_user_id", identity.UserID, "user_id", user.ID)
	}

	destination, err := deps.IssueOTP(ctx, user, req.UseBackup, sess.SessionID)
	if err != nil {
		return nil, err
	}

	sess.SetPending(user.ID, deps.Now().UnixMilli())
	if err := deps.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	if created {
		deps.MetricInc(deps.Metrics.SessionCreated)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, email, sess.SessionID, nil, func() map[string]string {
		return map[string]string{"stage": "pending_otp"}
	})

	return &LoginResult{
		SessionID:   sess.SessionID,
		Destination: destination,
	}, nil
}
