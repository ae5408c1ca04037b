package flows

import (
	"context"
	"time"
)

// VerifyResult is returned after a successful OTP verification.
type VerifyResult struct {
	SessionID    string
	User         User
	AccessToken  string
	RefreshToken string
}

// VerifyMetrics carries metric IDs needed by the OTP verification flow.
type VerifyMetrics struct {
	VerifySuccess int
	VerifyFailure int
	RateLimited   int
}

// VerifyEvents carries audit event names used by the OTP verification flow.
type VerifyEvents struct {
	VerifySuccess string
	VerifyFailure string
	RateLimited   string
}

// VerifyErrors carries host-level sentinel errors used by the OTP verification flow.
type VerifyErrors struct {
	EngineNotReady error
	InvalidRequest error
	NoPendingLogin error
	InvalidOTP     error
	RateLimited    error
	UserNotFound   error
}

// VerifyDeps captures OTP verification dependencies.
type VerifyDeps struct {
	Now func() time.Time

	Sessions Sessions

	CheckAttempts  func(ctx context.Context, userID string) error
	RecordFailure  func(ctx context.Context, userID string) error
	ResetAttempts  func(ctx context.Context, userID string) error
	IsRateLimited  func(error) bool
	ConsumeOTP     func(ctx context.Context, userID, otp string) (bool, error)
	UserByID       func(ctx context.Context, userID string) (User, error)
	IsNotFound     func(error) bool
	IssueTokenPair func(userID, email string) (access, refresh string, err error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics VerifyMetrics
	Events  VerifyEvents
	Errors  VerifyErrors
}

// RunVerifyOTP consumes the OTP of the session's pending user and, on a
// match, issues a token pair and promotes the session to authenticated.
// A mismatch leaves the session unchanged. The code is consumed before the
// session write, so a session backend failure at that point costs the user
// a resend.
func RunVerifyOTP(ctx context.Context, sessionID, otp string, deps VerifyDeps) (*VerifyResult, error) {
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
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if !deps.Sessions.ready() || deps.ConsumeOTP == nil || deps.UserByID == nil || deps.IssueTokenPair == nil {
		return nil, deps.Errors.EngineNotReady
	}

	sess, err := deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Pending() {
		// The code that authenticated this session has been consumed; a
		// replay is reported as a wrong code.
		if sess.Authenticated() {
			deps.MetricInc(deps.Metrics.VerifyFailure)
			deps.EmitAudit(ctx, deps.Events.VerifyFailure, false, sess.UserID, sess.Email, sess.SessionID, deps.Errors.InvalidOTP, nil)
			return nil, deps.Errors.InvalidOTP
		}
		return nil, deps.Errors.NoPendingLogin
	}
	userID := sess.PendingUserID

	if otp == "" {
		return nil, deps.Errors.InvalidOTP
	}

	if deps.CheckAttempts != nil {
		if err := deps.CheckAttempts(ctx, userID); err != nil {
			if deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.RateLimited)
				deps.EmitAudit(ctx, deps.Events.RateLimited, false, userID, "", sess.SessionID, deps.Errors.RateLimited, nil)
				return nil, deps.Errors.RateLimited
			}
			return nil, err
		}
	}

	// Resolved before the code is consumed so a store failure here leaves
	// the code usable.
	user, err := deps.UserByID(ctx, userID)
	if err != nil {
		if deps.IsNotFound(err) {
			return nil, deps.Errors.UserNotFound
		}
		return nil, err
	}

	ok, err := deps.ConsumeOTP(ctx, userID, otp)
	if err != nil {
		return nil, err
	}
	if !ok {
		if deps.RecordFailure != nil {
			if err := deps.RecordFailure(ctx, userID); err != nil && !deps.IsRateLimited(err) {
				deps.Warn("otp failure not counted", "user_id", userID, "error", err)
			}
		}
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.VerifyFailure, false, userID, "", sess.SessionID, deps.Errors.InvalidOTP, nil)
		return nil, deps.Errors.InvalidOTP
	}

	if deps.ResetAttempts != nil {
		if err := deps.ResetAttempts(ctx, userID); err != nil {
			deps.Warn("otp attempt counter reset failed", "user_id", userID, "error", err)
		}
	}

	access, refresh, err := deps.IssueTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	sess.Promote(user.ID, user.Email, user.Name, deps.Now().UnixMilli())
	if err := deps.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.VerifySuccess)
	deps.EmitAudit(ctx, deps.Events.VerifySuccess, true, user.ID, user.Email, sess.SessionID, nil, nil)

	return &VerifyResult{
		SessionID:    sess.SessionID,
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
