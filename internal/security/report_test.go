package security

import (
	"testing"
	"time"
)

func TestBuildReportWarnings(t *testing.T) {
	r := BuildReport(ReportInput{
		SigningAlgorithm:   "hs256",
		AccessTTL:          15 * time.Minute,
		EncryptionKeyBytes: 32,
	})
	if r.OTPAttemptLimitActive {
		t.Fatal("expected otp limit inactive")
	}
	if r.FieldEncryption != "aes-256-gcm" {
		t.Fatalf("unexpected field encryption %q", r.FieldEncryption)
	}
	if len(r.Warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %v", r.Warnings)
	}

	r = BuildReport(ReportInput{
		ProductionMode:       true,
		KeyID:                "k1",
		OTPMaxVerifyAttempts: 5,
		AuditEnabled:         true,
	})
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
}
