package internal

import (
	"strconv"
	"testing"
)

func TestNewOTPRange(t *testing.T) {
	for i := 0; i < 2000; i++ {
		otp, err := NewOTP()
		if err != nil {
			t.Fatalf("NewOTP: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("expected 6 digits, got %q", otp)
		}
		n, err := strconv.Atoi(otp)
		if err != nil {
			t.Fatalf("non-numeric otp %q", otp)
		}
		if n < otpMin || n > otpMax {
			t.Fatalf("otp %d out of range", n)
		}
	}
}

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	parsed, err := ParseSessionID(sid.String())
	if err != nil {
		t.Fatalf("ParseSessionID: %v", err)
	}
	if parsed != sid {
		t.Fatal("session id mismatch after round trip")
	}
	if _, err := ParseSessionID("short"); err == nil {
		t.Fatal("expected error for short session id")
	}
}

func TestHashIdentifierNormalizes(t *testing.T) {
	if HashIdentifier(" A@X.com ") != HashIdentifier("a@x.com") {
		t.Fatal("expected case and whitespace insensitive hash")
	}
	if HashIdentifier("a@x.com") == HashIdentifier("b@x.com") {
		t.Fatal("expected distinct hashes")
	}
}
