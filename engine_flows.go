package otpgate

import (
	"context"
	"time"

	"github.com/MrEthical07/otpgate/internal"
	"github.com/MrEthical07/otpgate/internal/flows"
	"github.com/MrEthical07/otpgate/mail"
	"go.uber.org/zap"
)

// buildFlows wires every flow dependency set once, at Build time.
func (e *Engine) buildFlows() flows.Service {
	sessions := e.sessionDeps()
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	emit := flows.AuditFunc(e.emitAudit)
	warn := e.sugar.Warnw
	now := e.now

	otp := flows.OTPDeps{
		TTL:           e.config.OTP.TTL,
		Now:           now,
		GenerateOTP:   internal.NewOTP,
		SaveOTP:       e.saveOTP,
		ClearOTP:      e.clearOTP,
		SendOTP:       e.sendOTP,
		ResetAttempts: e.otpLimiter.Reset,
		Sessions:      sessions,
		UserByID:      e.userByID,
		IsNotFound:    isUserNotFound,
		MetricInc:     metricInc,
		EmitAudit:     emit,
		Warn:          warn,
		Metrics: flows.OTPMetrics{
			OTPSent:        int(MetricOTPSent),
			OTPSendFailure: int(MetricOTPSendFailure),
		},
		Events: flows.OTPEvents{
			OTPSent:        auditEventOTPSent,
			OTPSendFailure: auditEventOTPSendFailure,
		},
		Errors: flows.OTPErrors{
			EngineNotReady:        ErrEngineNotReady,
			NoVerifiedBackupEmail: ErrNoVerifiedBackupEmail,
			MailDispatchFailed:    ErrMailDispatchFailed,
			NoPendingLogin:        ErrNoPendingLogin,
			UserNotFound:          ErrUserNotFound,
		},
	}

	deps := flows.Deps{
		OTP: otp,
		Login: flows.LoginDeps{
			Now:                  now,
			Sessions:             sessions,
			CheckLock:            e.checkLock,
			VerifyCredentials:    e.verifyCredentials,
			IsInvalidCredentials: isInvalidCredentials,
			RecordAttempt:        e.recordAttempt,
			ApplyLockout:         e.applyLockout,
			NotifyLocked:         e.notifyLocked,
			UserByEmail:          e.userByEmail,
			IsNotFound:           isUserNotFound,
			IssueOTP: func(ctx context.Context, user flows.User, useBackup bool, sessionID string) (string, error) {
				return flows.RunIssueOTP(ctx, user, useBackup, sessionID, otp)
			},
			MetricInc: metricInc,
			EmitAudit: emit,
			Warn:      warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:    int(MetricLoginSuccess),
				LoginFailure:    int(MetricLoginFailure),
				LoginLocked:     int(MetricLoginLocked),
				LoginUnverified: int(MetricLoginUnverified),
				AccountLocked:   int(MetricAccountLocked),
				SessionCreated:  int(MetricSessionCreated),
			},
			Events: flows.LoginEvents{
				LoginSuccess:  auditEventLoginSuccess,
				LoginFailure:  auditEventLoginFailure,
				LoginLocked:   auditEventLoginLocked,
				AccountLocked: auditEventAccountLocked,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:      ErrEngineNotReady,
				InvalidRequest:      ErrInvalidRequest,
				AccountLocked:       ErrAccountLocked,
				InvalidCredentials:  ErrInvalidCredentials,
				EmailNotVerified:    ErrEmailNotVerified,
				IdentityUnavailable: ErrIdentityUnavailable,
				UserNotFound:        ErrUserNotFound,
			},
		},
		Verify: flows.VerifyDeps{
			Now:            now,
			Sessions:       sessions,
			CheckAttempts:  e.otpLimiter.Check,
			RecordFailure:  e.otpLimiter.RecordFailure,
			ResetAttempts:  e.otpLimiter.Reset,
			IsRateLimited:  isOTPRateLimited,
			ConsumeOTP:     e.consumeOTP,
			UserByID:       e.userByID,
			IsNotFound:     isUserNotFound,
			IssueTokenPair: e.jwtManager.IssuePair,
			MetricInc:      metricInc,
			EmitAudit:      emit,
			Warn:           warn,
			Metrics: flows.VerifyMetrics{
				VerifySuccess: int(MetricOTPVerifySuccess),
				VerifyFailure: int(MetricOTPVerifyFailure),
				RateLimited:   int(MetricOTPRateLimited),
			},
			Events: flows.VerifyEvents{
				VerifySuccess: auditEventOTPVerified,
				VerifyFailure: auditEventOTPFailure,
				RateLimited:   auditEventOTPRateLimited,
			},
			Errors: flows.VerifyErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidRequest: ErrInvalidRequest,
				NoPendingLogin: ErrNoPendingLogin,
				InvalidOTP:     ErrInvalidOTP,
				RateLimited:    ErrOTPRateLimited,
				UserNotFound:   ErrUserNotFound,
			},
		},
		Session: flows.SessionDeps{
			Now:               now,
			InactivityTimeout: e.config.Session.InactivityTimeout,
			Sessions:          sessions,
			VerifyAccess:      e.verifyAccess,
			MetricInc:         metricInc,
			EmitAudit:         emit,
			Warn:              warn,
			Metrics: flows.SessionMetrics{
				AuthorizeSuccess: int(MetricAuthorizeSuccess),
				AuthorizeFailure: int(MetricAuthorizeFailure),
				SessionExpired:   int(MetricSessionExpired),
				Logout:           int(MetricLogout),
			},
			Events: flows.SessionEvents{
				SessionExpired: auditEventSessionExpired,
				Logout:         auditEventLogout,
				TokenMismatch:  auditEventTokenMismatch,
			},
			Errors: flows.SessionErrors{
				EngineNotReady:   ErrEngineNotReady,
				NotAuthenticated: ErrNotAuthenticated,
				SessionExpired:   ErrSessionExpired,
				InvalidToken:     ErrInvalidToken,
			},
		},
		Refresh: flows.RefreshDeps{
			VerifyRefresh:  e.verifyRefresh,
			UserByID:       e.userByID,
			IsNotFound:     isUserNotFound,
			IssueTokenPair: e.jwtManager.IssuePair,
			MetricInc:      metricInc,
			EmitAudit:      emit,
			Metrics: flows.RefreshMetrics{
				RefreshSuccess: int(MetricRefreshSuccess),
				RefreshFailure: int(MetricRefreshFailure),
			},
			Events: flows.RefreshEvents{
				RefreshSuccess: auditEventRefreshSuccess,
				RefreshInvalid: auditEventRefreshInvalid,
			},
			Errors: flows.RefreshErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidToken:   ErrInvalidToken,
			},
		},
	}

	return flows.New(deps)
}

func (e *Engine) saveOTP(ctx context.Context, userID, otp string, expiresAt time.Time) error {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	return e.storeErr(e.store.SaveOTP(ctx, userID, otp, expiresAt, e.now()))
}

func (e *Engine) clearOTP(ctx context.Context, userID string) error {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	return e.storeErr(e.store.ClearOTP(ctx, userID, e.now()))
}

func (e *Engine) consumeOTP(ctx context.Context, userID, otp string) (bool, error) {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	ok, err := e.store.ConsumeOTP(ctx, userID, otp, e.now())
	if err != nil {
		return false, e.storeErr(err)
	}
	return ok, nil
}

func (e *Engine) sendOTP(ctx context.Context, to, otp string, backup bool) error {
	msg := mail.OTPMessage(e.config.Mail.AppName, otp, e.config.OTP.TTL, backup)
	return e.sendMail(ctx, to, msg.Subject, msg.Body)
}

// notifyLocked tells the account owner about a lockout. Delivery is
// best-effort and never changes the login outcome.
func (e *Engine) notifyLocked(ctx context.Context, email string, until time.Time) {
	msg := mail.LockAlertMessage(e.config.Mail.AppName, until)
	if err := e.sendMail(context.WithoutCancel(ctx), email, msg.Subject, msg.Body); err != nil {
		e.logger.Warn("lockout alert not sent",
			zap.String("email_hash", internal.HashIdentifier(email)),
			zap.Error(err),
		)
	}
}
