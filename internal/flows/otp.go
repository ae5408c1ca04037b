package flows

import (
	"context"
	"time"
)

// OTPMetrics carries metric IDs needed by the OTP issuance flow.
type OTPMetrics struct {
	OTPSent        int
	OTPSendFailure int
}

// OTPEvents carries audit event names used by the OTP issuance flow.
type OTPEvents struct {
	OTPSent        string
	OTPSendFailure string
}

// OTPErrors carries host-level sentinel errors used by the OTP flows.
type OTPErrors struct {
	EngineNotReady        error
	NoVerifiedBackupEmail error
	MailDispatchFailed    error
	NoPendingLogin        error
	UserNotFound          error
}

// OTPDeps captures OTP issuance and resend dependencies.
type OTPDeps struct {
	TTL time.Duration
	Now func() time.Time

	GenerateOTP   func() (string, error)
	SaveOTP       func(ctx context.Context, userID, otp string, expiresAt time.Time) error
	ClearOTP      func(ctx context.Context, userID string) error
	SendOTP       func(ctx context.Context, to, otp string, backup bool) error
	ResetAttempts func(ctx context.Context, userID string) error

	Sessions   Sessions
	UserByID   func(ctx context.Context, userID string) (User, error)
	IsNotFound func(error) bool

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics OTPMetrics
	Events  OTPEvents
	Errors  OTPErrors
}

func (d *OTPDeps) defaults() {
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
	if d.IsNotFound == nil {
		d.IsNotFound = func(error) bool { return false }
	}
}

// RunIssueOTP chooses the destination, stores a fresh OTP and mails it. The
// backup destination is checked before anything is written. When the mail
// cannot be sent the stored OTP is cleared and MailDispatchFailed is
// returned.
//
// The returned destination is masked.
func RunIssueOTP(ctx context.Context, user User, useBackup bool, sessionID string, deps OTPDeps) (string, error) {
	deps.defaults()
	if deps.GenerateOTP == nil || deps.SaveOTP == nil || deps.SendOTP == nil {
		return "", deps.Errors.EngineNotReady
	}

	to := user.Email
	if useBackup {
		if user.BackupEmail == "" || !user.BackupVerified {
			return "", deps.Errors.NoVerifiedBackupEmail
		}
		to = user.BackupEmail
	}

	code, err := deps.GenerateOTP()
	if err != nil {
		return "", err
	}
	if err := deps.SaveOTP(ctx, user.ID, code, deps.Now().Add(deps.TTL)); err != nil {
		return "", err
	}
	if deps.ResetAttempts != nil {
		if err := deps.ResetAttempts(ctx, user.ID); err != nil {
			deps.Warn("otp attempt counter reset failed", "user_id", user.ID, "error", err)
		}
	}

	if err := deps.SendOTP(ctx, to, code, useBackup); err != nil {
		if deps.ClearOTP != nil {
			if clearErr := deps.ClearOTP(context.WithoutCancel(ctx), user.ID); clearErr != nil {
				deps.Warn("otp clear after mail failure failed", "user_id", user.ID, "error", clearErr)
			}
		}
		deps.MetricInc(deps.Metrics.OTPSendFailure)
		deps.EmitAudit(ctx, deps.Events.OTPSendFailure, false, user.ID, user.Email, sessionID, deps.Errors.MailDispatchFailed, nil)
		deps.Warn("otp mail dispatch failed", "user_id", user.ID, "error", err)
		return "", joinErr(deps.Errors.MailDispatchFailed, err)
	}

	deps.MetricInc(deps.Metrics.OTPSent)
	deps.EmitAudit(ctx, deps.Events.OTPSent, true, user.ID, user.Email, sessionID, nil, func() map[string]string {
		return map[string]string{"destination": destinationKind(useBackup)}
	})
	return MaskEmail(to), nil
}

// RunResendOTP issues a fresh OTP for the pending user of sessionID,
// overwriting the previous one.
func RunResendOTP(ctx context.Context, sessionID string, useBackup bool, deps OTPDeps) (string, error) {
	deps.defaults()
	if !deps.Sessions.ready() || deps.UserByID == nil {
		return "", deps.Errors.EngineNotReady
	}

	sess, err := deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !sess.Pending() {
		return "", deps.Errors.NoPendingLogin
	}

	user, err := deps.UserByID(ctx, sess.PendingUserID)
	if err != nil {
		if deps.IsNotFound(err) {
			return "", deps.Errors.UserNotFound
		}
		return "", err
	}

	return RunIssueOTP(ctx, user, useBackup, sess.SessionID, deps)
}

func destinationKind(backup bool) string {
	if backup {
		return "backup"
	}
	return "primary"
}
