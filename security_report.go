package otpgate

import "github.com/MrEthical07/otpgate/internal/security"

// SecurityReport summarizes token lifetimes, OTP and lockout policy and
// audit settings. Warnings lists settings an operator should review.
type SecurityReport = security.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return security.BuildReport(security.ReportInput{
		ProductionMode:       e.config.Security.ProductionMode,
		SigningAlgorithm:     e.config.JWT.SigningMethod,
		KeyID:                e.config.JWT.KeyID,
		AccessTTL:            e.config.JWT.AccessTTL,
		RefreshTTL:           e.config.JWT.RefreshTTL,
		OTPTTL:               e.config.OTP.TTL,
		OTPMaxVerifyAttempts: e.config.OTP.MaxVerifyAttempts,
		LockoutThreshold:     e.config.Lockout.Threshold,
		LockoutWindow:        e.config.Lockout.Window,
		LockoutDuration:      e.config.Lockout.Duration,
		InactivityTimeout:    e.config.Session.InactivityTimeout,
		AuditEnabled:         e.config.Audit.Enabled,
		EncryptionKeyBytes:   len(e.config.Encryption.Key),
	})
}
