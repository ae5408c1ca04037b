package flows

import "context"

// RefreshResult carries the rotated token pair.
type RefreshResult struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess int
	RefreshFailure int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess string
	RefreshInvalid string
}

// RefreshErrors carries host-level sentinel errors used by the refresh flow.
type RefreshErrors struct {
	EngineNotReady error
	InvalidToken   error
}

// RefreshDeps captures refresh dependencies. Refresh never reads or writes
// sessions.
type RefreshDeps struct {
	// VerifyRefresh returns the uid of a valid refresh token, or "" and false.
	VerifyRefresh  func(token string) (string, bool)
	UserByID       func(ctx context.Context, userID string) (User, error)
	IsNotFound     func(error) bool
	IssueTokenPair func(userID, email string) (access, refresh string, err error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh verifies a refresh token, reloads its user and issues a new pair.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*RefreshResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.IsNotFound == nil {
		deps.IsNotFound = func(error) bool { return false }
	}
	if deps.VerifyRefresh == nil || deps.UserByID == nil || deps.IssueTokenPair == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(userID string) (*RefreshResult, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, userID, "", "", deps.Errors.InvalidToken, nil)
		return nil, deps.Errors.InvalidToken
	}

	uid, ok := deps.VerifyRefresh(refreshToken)
	if !ok {
		return fail("")
	}

	user, err := deps.UserByID(ctx, uid)
	if err != nil {
		if deps.IsNotFound(err) {
			return fail(uid)
		}
		return nil, err
	}

	access, refresh, err := deps.IssueTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, user.ID, user.Email, "", nil, nil)
	return &RefreshResult{UserID: user.ID, AccessToken: access, RefreshToken: refresh}, nil
}
