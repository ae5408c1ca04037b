package otpgate

import (
	"context"
	"time"
)

// Authorize is the activity check run in front of protected operations.
// An idle session is destroyed and reported as ErrSessionExpired. When an
// access token is presented it must belong to the session user.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) (_ *AuthResult, err error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Authorize")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
		}
	}()

	res, err := e.flow.Authorize(ctx, req.SessionID, req.AccessToken)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		UserID:       res.UserID,
		Email:        res.Email,
		Name:         res.Name,
		SessionID:    res.SessionID,
		LastActivity: res.LastActivity,
	}, nil
}

// Status reports the session state without extending it.
func (e *Engine) Status(ctx context.Context, req StatusRequest) (_ *AuthStatus, err error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Status")
	defer func() { endSpan(span, err) }()

	res, err := e.flow.Status(ctx, req.SessionID, req.AccessToken, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	out := &AuthStatus{
		State:            AuthState(res.State),
		LastActivity:     res.LastActivity,
		HasAccessToken:   res.HasAccessToken,
		AccessTokenValid: res.AccessTokenValid,
		HasRefreshToken:  res.HasRefreshToken,
	}
	if res.User != nil {
		out.User = &UserInfo{ID: res.User.ID, Email: res.User.Email, Name: res.User.Name}
	}
	return out, nil
}

// Logout destroys the session. Unknown sessions succeed.
func (e *Engine) Logout(ctx context.Context, sessionID string) (err error) {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	return e.flow.Logout(ctx, sessionID)
}

// Refresh exchanges a refresh token for a new pair. It does not read or
// extend any session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (_ *TokenPair, err error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	res, err := e.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}
