package otpgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/otpgate/internal"
	"github.com/MrEthical07/otpgate/internal/limiters"
	"github.com/MrEthical07/otpgate/mail"
	"github.com/MrEthical07/otpgate/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxRecentAttempts = 100

// Register creates the identity with the provider and the matching
// credential-store record. A welcome message is sent best-effort. Register
// does not log the user in.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (_ *RegisterResult, err error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	email := store.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if !plausibleEmail(email) || req.Password == "" {
		return nil, ErrInvalidRequest
	}

	if err := e.registerLimiter.Enforce(ctx, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrRegistrationRateLimited) {
			e.metricInc(MetricRateLimitHit)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", ErrRateLimited, nil)
			return nil, ErrRateLimited
		}
		e.logger.Warn("registration limiter unavailable", zap.Error(err))
	}

	identity, err := e.registerIdentity(ctx, email, req.Password, name)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", email, "", ErrDuplicateEmail, nil)
			return nil, ErrDuplicateEmail
		}
		if errors.Is(err, ErrInvalidRequest) {
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", ErrInvalidRequest, nil)
			return nil, err
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", ErrIdentityUnavailable, nil)
		e.logger.Warn("identity provider registration failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	userID := identity.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	storeCtx, cancel := e.storageCtx(ctx)
	_, err = e.store.CreateUser(storeCtx, store.NewUser{ID: userID, Email: email, Name: name}, e.now())
	cancel()
	if err != nil {
		err = e.storeErr(err)
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, userID, email, "", err, nil)
		}
		return nil, err
	}

	msg := mail.WelcomeMessage(e.config.Mail.AppName, name, identity.EmailVerified)
	if err := e.sendMail(ctx, email, msg.Subject, msg.Body); err != nil {
		e.logger.Warn("welcome mail not sent", zap.String("user_id", userID), zap.Error(err))
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, userID, email, "", nil, nil)
	return &RegisterResult{UserID: userID, EmailVerified: identity.EmailVerified}, nil
}

func (e *Engine) registerIdentity(ctx context.Context, email, password, name string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.Identity)
	defer cancel()
	return e.identity.Register(ctx, email, password, name)
}

// AddBackupEmail mails a six digit confirmation code to addr and then
// stores addr as the user's unverified backup address. Any previous backup
// address is replaced and must be verified again. When the mail cannot be
// sent nothing is stored, so an existing backup address stays usable.
func (e *Engine) AddBackupEmail(ctx context.Context, userID, addr string) (err error) {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "AddBackupEmail", attribute.String("otpgate.user_id", userID))
	defer func() { endSpan(span, err) }()

	addr = store.NormalizeEmail(addr)
	if userID == "" || !plausibleEmail(addr) {
		return ErrInvalidRequest
	}
	if _, err := e.userByID(ctx, userID); err != nil {
		return err
	}

	code, err := internal.NewVerificationCode()
	if err != nil {
		return err
	}

	msg := mail.BackupVerificationMessage(e.config.Mail.AppName, code)
	if err := e.sendMail(ctx, addr, msg.Subject, msg.Body); err != nil {
		e.metricInc(MetricBackupEmailFailure)
		e.emitAudit(ctx, auditEventBackupEmailFailure, false, userID, addr, "", ErrMailDispatchFailed, nil)
		return fmt.Errorf("%w: %v", ErrMailDispatchFailed, err)
	}

	storeCtx, cancel := e.storageCtx(context.WithoutCancel(ctx))
	err = e.store.SetBackupEmail(storeCtx, userID, addr, code, e.now())
	cancel()
	if err != nil {
		return e.storeErr(err)
	}

	if err := e.backupLimiter.Reset(ctx, userID); err != nil {
		e.logger.Warn("backup verify counter not reset", zap.String("user_id", userID), zap.Error(err))
	}

	e.metricInc(MetricBackupEmailAdded)
	e.emitAudit(ctx, auditEventBackupEmailAdded, true, userID, addr, "", nil, nil)
	return nil
}

// VerifyBackupEmail confirms the pending backup address with the mailed
// code. A wrong code returns ErrInvalidBackupCode.
func (e *Engine) VerifyBackupEmail(ctx context.Context, userID, code string) (err error) {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "VerifyBackupEmail", attribute.String("otpgate.user_id", userID))
	defer func() { endSpan(span, err) }()

	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return ErrInvalidBackupCode
	}

	if err := e.backupLimiter.Check(ctx, userID); err != nil {
		if errors.Is(err, limiters.ErrBackupVerifyRateLimited) {
			e.metricInc(MetricBackupEmailFailure)
			e.emitAudit(ctx, auditEventBackupEmailFailure, false, userID, "", "", ErrOTPRateLimited, nil)
			return ErrOTPRateLimited
		}
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	storeCtx, cancel := e.storageCtx(ctx)
	ok, err := e.store.VerifyBackupEmail(storeCtx, userID, code, e.now())
	cancel()
	if err != nil {
		return e.storeErr(err)
	}
	if !ok {
		if err := e.backupLimiter.RecordFailure(ctx, userID); err != nil && !errors.Is(err, limiters.ErrBackupVerifyRateLimited) {
			e.logger.Warn("backup verify failure not counted", zap.String("user_id", userID), zap.Error(err))
		}
		e.metricInc(MetricBackupEmailFailure)
		e.emitAudit(ctx, auditEventBackupEmailFailure, false, userID, "", "", ErrInvalidBackupCode, nil)
		return ErrInvalidBackupCode
	}

	e.metricInc(MetricBackupEmailVerified)
	e.emitAudit(ctx, auditEventBackupEmailVerified, true, userID, "", "", nil, nil)
	return nil
}

// TestBackupEmail sends a test message to the verified backup address.
func (e *Engine) TestBackupEmail(ctx context.Context, userID string) (err error) {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "TestBackupEmail", attribute.String("otpgate.user_id", userID))
	defer func() { endSpan(span, err) }()

	storeCtx, cancel := e.storageCtx(ctx)
	user, err := e.store.UserByID(storeCtx, userID)
	cancel()
	if err != nil {
		return e.storeErr(err)
	}

	addr, ok := user.UsableBackupEmail()
	if !ok {
		return ErrNoVerifiedBackupEmail
	}

	msg := mail.BackupTestMessage(e.config.Mail.AppName)
	if err := e.sendMail(ctx, addr, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDispatchFailed, err)
	}
	e.emitAudit(ctx, auditEventBackupEmailTested, true, userID, addr, "", nil, nil)
	return nil
}

// RecentLoginAttempts returns up to limit attempts for email, newest first.
func (e *Engine) RecentLoginAttempts(ctx context.Context, email string, limit int) (_ []LoginAttempt, err error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "RecentLoginAttempts")
	defer func() { endSpan(span, err) }()

	if limit <= 0 || limit > maxRecentAttempts {
		limit = maxRecentAttempts
	}
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	attempts, err := e.store.RecentAttempts(ctx, store.NormalizeEmail(email), limit)
	if err != nil {
		return nil, e.storeErr(err)
	}
	return attempts, nil
}

// plausibleEmail is a shape check only; deliverability is the mailer's job.
func plausibleEmail(addr string) bool {
	at := strings.LastIndexByte(addr, '@')
	return at > 0 && at < len(addr)-1 && !strings.ContainsAny(addr, " \r\n<>")
}
