package otpgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpgate/fieldcrypt"
	"github.com/MrEthical07/otpgate/internal"
	internalaudit "github.com/MrEthical07/otpgate/internal/audit"
	"github.com/MrEthical07/otpgate/internal/flows"
	"github.com/MrEthical07/otpgate/internal/limiters"
	"github.com/MrEthical07/otpgate/jwt"
	"github.com/MrEthical07/otpgate/session"
	"github.com/MrEthical07/otpgate/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine is the authentication state machine. It owns the credential
// store, the session store, the token manager and the field cipher, and
// drives every transition through the flows in internal/flows.
//
// Engine instances are built once by [Builder.Build] and are safe for
// concurrent use.
type Engine struct {
	config          Config
	store           *store.Store
	sessions        *session.Store
	jwtManager      *jwt.Manager
	cipher          *fieldcrypt.Cipher
	identity        IdentityProvider
	mailer          Mailer
	clock           Clock
	lockout         limiters.LockoutPolicy
	otpLimiter      *limiters.OTPLimiter
	backupLimiter   *limiters.BackupVerifyLimiter
	registerLimiter *limiters.RegistrationLimiter
	audit           *internalaudit.Dispatcher
	metrics         *Metrics
	logger          *zap.Logger
	sugar           *zap.SugaredLogger
	tracer          trace.Tracer
	flow            flows.Service
}

// Close flushes the audit dispatcher. The Redis client and database
// handle belong to the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// AuditDropped reports how many audit events never reached the sink.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ping checks the credential store and the session backend.
func (e *Engine) Ping(ctx context.Context) error {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	if err := e.store.Ping(ctx); err != nil {
		return e.storeErr(err)
	}
	if _, err := e.sessions.Ping(ctx); err != nil {
		return e.sessionErr(err)
	}
	return nil
}

// RecordRateLimited counts a request refused by an outer rate limiter.
func (e *Engine) RecordRateLimited() {
	e.metricInc(MetricRateLimitHit)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

func (e *Engine) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeouts.Storage)
}

// storeErr maps credential-store failures onto the public taxonomy.
func (e *Engine) storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrDuplicateEmail):
		return ErrDuplicateEmail
	case errors.Is(err, fieldcrypt.ErrIntegrity):
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	e.sugar.Warnw("credential store failure", "error", err)
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func (e *Engine) sessionErr(err error) error {
	if err == nil {
		return nil
	}
	e.sugar.Warnw("session backend failure", "error", err)
	return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "otpgate."+name, trace.WithAttributes(attrs...))
}

// endSpan records the outcome of one engine operation.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("otpgate.error_code", ErrorCode(err)))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

/*
====================================
SESSION ADAPTERS
====================================
*/

// loadSession returns (nil, nil) for an empty, malformed, unknown or
// undecodable id so that callers treat the client as anonymous.
func (e *Engine) loadSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, nil
	}

	ctx, cancel := e.storageCtx(ctx)
	defer cancel()

	sess, err := e.sessions.Get(ctx, sessionID)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrSessionNotFound):
		return nil, nil
	case errors.Is(err, session.ErrSessionCorrupt):
		e.sugar.Warnw("discarding corrupt session", "error", err)
		return nil, nil
	}
	return nil, e.sessionErr(err)
}

func (e *Engine) newSession(now time.Time) (*session.Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	ms := now.UnixMilli()
	return &session.Session{
		SessionID:    sid.String(),
		CreatedAt:    ms,
		LastActivity: ms,
	}, nil
}

func (e *Engine) saveSession(ctx context.Context, sess *session.Session) error {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	return e.sessionErr(e.sessions.Save(ctx, sess))
}

func (e *Engine) deleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	_, err := e.sessions.Delete(ctx, sessionID)
	return e.sessionErr(err)
}

// touchSession bumps lastActivity in place. A session deleted since it was
// loaded reports false instead of being written back.
func (e *Engine) touchSession(ctx context.Context, sessionID string, lastActivity int64) (bool, error) {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	err := e.sessions.Touch(ctx, sessionID, lastActivity)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, session.ErrSessionNotFound):
		return false, nil
	case errors.Is(err, session.ErrSessionCorrupt):
		e.sugar.Warnw("discarding corrupt session", "error", err)
		return false, nil
	}
	return false, e.sessionErr(err)
}

func (e *Engine) sessionDeps() flows.Sessions {
	return flows.Sessions{
		Load:   e.loadSession,
		New:    e.newSession,
		Save:   e.saveSession,
		Delete: e.deleteSession,
		Touch:  e.touchSession,
	}
}

/*
====================================
STORE ADAPTERS
====================================
*/

func toFlowUser(u *store.User) flows.User {
	return flows.User{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		BackupEmail:    u.BackupEmail,
		BackupVerified: u.BackupEmailVerified,
	}
}

func (e *Engine) userByID(ctx context.Context, userID string) (flows.User, error) {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	u, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return flows.User{}, e.storeErr(err)
	}
	return toFlowUser(u), nil
}

func (e *Engine) userByEmail(ctx context.Context, email string) (flows.User, error) {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	u, err := e.store.UserByEmail(ctx, email)
	if err != nil {
		return flows.User{}, e.storeErr(err)
	}
	return toFlowUser(u), nil
}

func isUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func (e *Engine) checkLock(ctx context.Context, email string) (bool, time.Time, error) {
	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	state, err := e.store.CheckLock(ctx, email, e.now())
	if err != nil {
		return false, time.Time{}, e.storeErr(err)
	}
	if state.Cleared {
		e.logger.Info("account lock expired", zap.String("email_hash", internal.HashIdentifier(email)))
	}
	return state.Locked, state.Until, nil
}

func (e *Engine) recordAttempt(ctx context.Context, email string, success bool, reason string) error {
	ctx, cancel := e.storageCtx(context.WithoutCancel(ctx))
	defer cancel()
	_, err := e.store.RecordLoginAttempt(ctx, store.LoginAttempt{
		Email:   email,
		Success: success,
		Reason:  reason,
		At:      e.now(),
	})
	return err
}

func (e *Engine) applyLockout(ctx context.Context, email string) (bool, time.Time, error) {
	ctx, cancel := e.storageCtx(context.WithoutCancel(ctx))
	defer cancel()
	decision, err := e.lockout.Apply(ctx, e.store, email, e.now())
	if err != nil {
		return false, time.Time{}, err
	}
	if decision.Locked {
		e.logger.Info("account locked",
			zap.String("email_hash", internal.HashIdentifier(email)),
			zap.Int("failures", decision.Failures),
			zap.Time("until", decision.Until),
		)
	}
	return decision.Locked, decision.Until, nil
}

/*
====================================
COLLABORATOR ADAPTERS
====================================
*/

func (e *Engine) verifyCredentials(ctx context.Context, email, password string) (flows.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.Identity)
	defer cancel()
	id, err := e.identity.VerifyCredentials(ctx, email, password)
	if err != nil {
		return flows.Identity{}, err
	}
	return flows.Identity{UserID: id.UserID, EmailVerified: id.EmailVerified}, nil
}

func isInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// sendMail delivers one message under the mail timeout.
func (e *Engine) sendMail(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.Mail)
	defer cancel()
	return e.mailer.Send(ctx, to, subject, body)
}

func (e *Engine) verifyAccess(token string) (string, bool) {
	claims := e.jwtManager.VerifyAccess(token)
	if claims == nil {
		return "", false
	}
	return claims.UID, true
}

func (e *Engine) verifyRefresh(token string) (string, bool) {
	claims := e.jwtManager.VerifyRefresh(token)
	if claims == nil {
		return "", false
	}
	return claims.UID, true
}

func isOTPRateLimited(err error) bool {
	return errors.Is(err, limiters.ErrOTPRateLimited)
}
