package security

import "time"

// Report summarizes the security posture of a configured engine.
type Report struct {
	ProductionMode        bool
	SigningAlgorithm      string
	KeyID                 string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	OTPTTL                time.Duration
	OTPAttemptLimitActive bool
	OTPMaxVerifyAttempts  int
	LockoutThreshold      int
	LockoutWindow         time.Duration
	LockoutDuration       time.Duration
	InactivityTimeout     time.Duration
	AuditEnabled          bool
	FieldEncryption       string
	Warnings              []string
}

type ReportInput struct {
	ProductionMode       bool
	SigningAlgorithm     string
	KeyID                string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	OTPTTL               time.Duration
	OTPMaxVerifyAttempts int
	LockoutThreshold     int
	LockoutWindow        time.Duration
	LockoutDuration      time.Duration
	InactivityTimeout    time.Duration
	AuditEnabled         bool
	EncryptionKeyBytes   int
}

// BuildReport derives the report and its warnings from input.
func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:        input.ProductionMode,
		SigningAlgorithm:      input.SigningAlgorithm,
		KeyID:                 input.KeyID,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		OTPTTL:                input.OTPTTL,
		OTPAttemptLimitActive: input.OTPMaxVerifyAttempts > 0,
		OTPMaxVerifyAttempts:  input.OTPMaxVerifyAttempts,
		LockoutThreshold:      input.LockoutThreshold,
		LockoutWindow:         input.LockoutWindow,
		LockoutDuration:       input.LockoutDuration,
		InactivityTimeout:     input.InactivityTimeout,
		AuditEnabled:          input.AuditEnabled,
	}
	if input.EncryptionKeyBytes > 0 {
		r.FieldEncryption = "aes-256-gcm"
	}

	if !r.OTPAttemptLimitActive {
		r.Warnings = append(r.Warnings, "otp verification attempts are not limited")
	}
	if !r.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit trail disabled")
	}
	if !r.ProductionMode {
		r.Warnings = append(r.Warnings, "production mode disabled")
	}
	if r.KeyID == "" {
		r.Warnings = append(r.Warnings, "tokens carry no key id; signing key rotation is not possible")
	}
	return r
}
