package otpgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/otpgate/store"
)

// TestLoginScenarioWithUnverifiedBackup walks a user with an unverified
// backup email and no prior failures through login, a wrong code and the
// correct code.
func TestLoginScenarioWithUnverifiedBackup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.identity.add("u-a", "a@x.com", "correct", true)
	if _, err := env.store.CreateUser(ctx, store.NewUser{ID: "u-a", Email: "a@x.com", Name: "A"}, env.clock.Now()); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := env.engine.AddBackupEmail(ctx, "u-a", "backup@x.com"); err != nil {
		t.Fatalf("add backup: %v", err)
	}

	res, err := env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: "correct"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !res.RequireOTP {
		t.Fatal("expected requireOTP=true")
	}
	code := env.lastOTP(t, "a@x.com")

	wrong := "999999"
	if code == wrong {
		wrong = "999998"
	}
	if _, err := env.engine.VerifyOTP(ctx, VerifyOTPRequest{SessionID: res.SessionID, OTP: wrong}); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP for wrong code, got %v", err)
	}

	env.clock.Advance(3 * time.Minute)
	out, err := env.engine.VerifyOTP(ctx, VerifyOTPRequest{SessionID: res.SessionID, OTP: code})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Tokens.AccessToken == "" || out.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", out.Tokens)
	}
	if out.User.ID != "u-a" || out.User.Email != "a@x.com" || out.User.Name != "A" {
		t.Fatalf("unexpected user projection %+v", out.User)
	}

	st, err := env.engine.Status(ctx, StatusRequest{SessionID: res.SessionID, AccessToken: out.Tokens.AccessToken})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if st.State != StateAuthenticated || !st.AccessTokenValid {
		t.Fatalf("expected authenticated session, got %+v", st)
	}
}
