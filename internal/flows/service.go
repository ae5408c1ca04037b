package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.IssueOTP != nil && s.deps.Session.VerifyAccess != nil
}

func (s Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) IssueOTP(ctx context.Context, user User, useBackup bool, sessionID string) (string, error) {
	return RunIssueOTP(ctx, user, useBackup, sessionID, s.deps.OTP)
}

func (s Service) ResendOTP(ctx context.Context, sessionID string, useBackup bool) (string, error) {
	return RunResendOTP(ctx, sessionID, useBackup, s.deps.OTP)
}

func (s Service) VerifyOTP(ctx context.Context, sessionID, otp string) (*VerifyResult, error) {
	return RunVerifyOTP(ctx, sessionID, otp, s.deps.Verify)
}

func (s Service) Authorize(ctx context.Context, sessionID, accessToken string) (*AuthorizeResult, error) {
	return RunAuthorize(ctx, sessionID, accessToken, s.deps.Session)
}

func (s Service) Status(ctx context.Context, sessionID, accessToken, refreshToken string) (*StatusResult, error) {
	return RunStatus(ctx, sessionID, accessToken, refreshToken, s.deps.Session)
}

func (s Service) Logout(ctx context.Context, sessionID string) error {
	return RunLogout(ctx, sessionID, s.deps.Session)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}
