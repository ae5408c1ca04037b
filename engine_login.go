package otpgate

import (
	"context"
	"time"

	"github.com/MrEthical07/otpgate/internal/flows"
	"go.opentelemetry.io/otel/attribute"
)

// Login verifies primary credentials and mails an OTP. On success the
// session is in the pending-OTP state and LoginResult.RequireOTP is true;
// a login never authenticates on its own.
//
// Wrong passwords count toward the lockout policy. Provider outages do not
// and surface as ErrIdentityUnavailable.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (_ *LoginResult, err error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login", attribute.Bool("otpgate.use_backup", req.UseBackup))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}
	}()

	res, err := e.flow.Login(ctx, flowsLoginRequest(req))
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		SessionID:   res.SessionID,
		RequireOTP:  true,
		Destination: res.Destination,
	}, nil
}

// ResendOTP issues a fresh OTP for the session's pending login, replacing
// the previous code. The returned string is the masked destination.
func (e *Engine) ResendOTP(ctx context.Context, req ResendOTPRequest) (_ string, err error) {
	if e == nil || !e.flow.Initialized() {
		return "", ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResendOTP", attribute.Bool("otpgate.use_backup", req.UseBackup))
	defer func() { endSpan(span, err) }()

	return e.flow.ResendOTP(ctx, req.SessionID, req.UseBackup)
}

// VerifyOTP consumes the pending OTP and authenticates the session. A wrong
// or expired code returns ErrInvalidOTP and leaves the session pending.
func (e *Engine) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (_ *VerifyOTPResult, err error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "VerifyOTP")
	defer func() { endSpan(span, err) }()

	res, err := e.flow.VerifyOTP(ctx, req.SessionID, req.OTP)
	if err != nil {
		return nil, err
	}
	return &VerifyOTPResult{
		SessionID: res.SessionID,
		User: UserInfo{
			ID:    res.User.ID,
			Email: res.User.Email,
			Name:  res.User.Name,
		},
		Tokens: TokenPair{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
		},
	}, nil
}

func flowsLoginRequest(req LoginRequest) flows.LoginRequest {
	return flows.LoginRequest{
		SessionID: req.SessionID,
		Email:     req.Email,
		Password:  req.Password,
		UseBackup: req.UseBackup,
	}
}
