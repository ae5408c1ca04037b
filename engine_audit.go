package otpgate

import (
	"context"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginLocked         = "login_locked"
	auditEventAccountLocked       = "account_locked"
	auditEventOTPSent             = "otp_sent"
	auditEventOTPSendFailure      = "otp_send_failure"
	auditEventOTPVerified         = "otp_verified"
	auditEventOTPFailure          = "otp_failure"
	auditEventOTPRateLimited      = "otp_rate_limited"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventSessionExpired      = "session_expired"
	auditEventTokenMismatch       = "token_session_mismatch"
	auditEventLogout              = "logout"
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterDuplicate   = "register_duplicate"
	auditEventRegisterFailure     = "register_failure"
	auditEventBackupEmailAdded    = "backup_email_added"
	auditEventBackupEmailVerified = "backup_email_verified"
	auditEventBackupEmailFailure  = "backup_email_failure"
	auditEventBackupEmailTested   = "backup_email_tested"
	auditEventSensitiveUpdate     = "sensitive_update"
	auditEventSensitiveDecrypt    = "sensitive_decrypt"
	auditEventIntegrityFailure    = "integrity_failure"
)

// emitAudit builds an AuditEvent and hands it to the dispatcher. The
// metadata builder runs only when auditing is enabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = ErrorCode(err)
	}

	e.audit.Emit(ctx, event)
}
