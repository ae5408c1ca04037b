package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/otpgate/session"
)

var (
	errNotReady       = errors.New("not ready")
	errBadRequest     = errors.New("bad request")
	errLocked         = errors.New("locked")
	errBadCreds       = errors.New("bad credentials")
	errUnverified     = errors.New("unverified")
	errIdentityDown   = errors.New("identity down")
	errNoUser         = errors.New("no user")
	errNoBackup       = errors.New("no backup")
	errMail           = errors.New("mail failed")
	errNoPending      = errors.New("no pending")
	errBadOTP         = errors.New("bad otp")
	errTooMany        = errors.New("too many")
	errNotAuthed      = errors.New("not authenticated")
	errExpired        = errors.New("expired")
	errBadToken       = errors.New("bad token")
	errProviderReject = errors.New("provider: wrong password")
)

type memSessions struct {
	mu   sync.Mutex
	data map[string]session.Session
	next int
}

func newMemSessions() *memSessions {
	return &memSessions{data: map[string]session.Session{}}
}

func (m *memSessions) deps() Sessions {
	return Sessions{
		Load: func(_ context.Context, id string) (*session.Session, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			s, ok := m.data[id]
			if !ok {
				return nil, nil
			}
			return &s, nil
		},
		New: func(now time.Time) (*session.Session, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.next++
			return &session.Session{
				SessionID:    "sid-" + string(rune('a'+m.next)),
				CreatedAt:    now.UnixMilli(),
				LastActivity: now.UnixMilli(),
			}, nil
		},
		Save: func(_ context.Context, s *session.Session) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.data[s.SessionID] = *s
			return nil
		},
		Delete: func(_ context.Context, id string) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.data, id)
			return nil
		},
		Touch: func(_ context.Context, id string, lastActivity int64) (bool, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			s, ok := m.data[id]
			if !ok {
				return false, nil
			}
			s.LastActivity = lastActivity
			m.data[id] = s
			return true, nil
		},
	}
}

func (m *memSessions) get(id string) (session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	return s, ok
}

type fixture struct {
	now      time.Time
	sessions *memSessions

	identity    Identity
	identityErr error
	users       map[string]User

	lockedUntil time.Time
	failures    int
	attempts    []string

	otps      map[string]string
	sent      []string
	mailErr   error
	counted   int
	audits    []string
	metricIDs []int
}

func newFixture() *fixture {
	return &fixture{
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		sessions: newMemSessions(),
		identity: Identity{UserID: "u1", EmailVerified: true},
		users: map[string]User{
			"u1": {ID: "u1", Email: "alice@example.com", Name: "Alice"},
		},
		otps: map[string]string{},
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) audit(_ context.Context, event string, _ bool, _, _, _ string, _ error, _ func() map[string]string) {
	f.audits = append(f.audits, event)
}

func (f *fixture) metric(id int) { f.metricIDs = append(f.metricIDs, id) }

func (f *fixture) userByID(_ context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, errNoUser
	}
	return u, nil
}

func (f *fixture) otpDeps() OTPDeps {
	return OTPDeps{
		TTL:         10 * time.Minute,
		Now:         f.clock,
		GenerateOTP: func() (string, error) { return "123456", nil },
		SaveOTP: func(_ context.Context, uid, otp string, _ time.Time) error {
			f.otps[uid] = otp
			return nil
		},
		ClearOTP: func(_ context.Context, uid string) error {
			delete(f.otps, uid)
			return nil
		},
		SendOTP: func(_ context.Context, to, _ string, _ bool) error {
			if f.mailErr != nil {
				return f.mailErr
			}
			f.sent = append(f.sent, to)
			return nil
		},
		Sessions:   f.sessions.deps(),
		UserByID:   f.userByID,
		IsNotFound: func(err error) bool { return errors.Is(err, errNoUser) },
		MetricInc:  f.metric,
		EmitAudit:  f.audit,
		Metrics:    OTPMetrics{OTPSent: 1, OTPSendFailure: 2},
		Events:     OTPEvents{OTPSent: "otp_sent", OTPSendFailure: "otp_send_failure"},
		Errors: OTPErrors{
			EngineNotReady:        errNotReady,
			NoVerifiedBackupEmail: errNoBackup,
			MailDispatchFailed:    errMail,
			NoPendingLogin:        errNoPending,
			UserNotFound:          errNoUser,
		},
	}
}

func (f *fixture) loginDeps() LoginDeps {
	otp := f.otpDeps()
	return LoginDeps{
		Now:      f.clock,
		Sessions: f.sessions.deps(),
		CheckLock: func(context.Context, string) (bool, time.Time, error) {
			if f.now.Before(f.lockedUntil) {
				return true, f.lockedUntil, nil
			}
			return false, time.Time{}, nil
		},
		VerifyCredentials: func(_ context.Context, _, password string) (Identity, error) {
			if f.identityErr != nil {
				return Identity{}, f.identityErr
			}
			if password != "correct" {
				return Identity{}, errProviderReject
			}
			return f.identity, nil
		},
		IsInvalidCredentials: func(err error) bool { return errors.Is(err, errProviderReject) },
		RecordAttempt: func(_ context.Context, _ string, _ bool, reason string) error {
			f.attempts = append(f.attempts, reason)
			return nil
		},
		ApplyLockout: func(context.Context, string) (bool, time.Time, error) {
			f.failures++
			if f.failures >= 5 {
				f.lockedUntil = f.now.Add(15 * time.Minute)
				return true, f.lockedUntil, nil
			}
			return false, time.Time{}, nil
		},
		UserByEmail: func(_ context.Context, email string) (User, error) {
			for _, u := range f.users {
				if u.Email == email {
					return u, nil
				}
			}
			return User{}, errNoUser
		},
		IsNotFound: func(err error) bool { return errors.Is(err, errNoUser) },
		IssueOTP: func(ctx context.Context, user User, useBackup bool, sid string) (string, error) {
			return RunIssueOTP(ctx, user, useBackup, sid, otp)
		},
		MetricInc: f.metric,
		EmitAudit: f.audit,
		Metrics:   LoginMetrics{LoginSuccess: 10, LoginFailure: 11, LoginLocked: 12, LoginUnverified: 13, AccountLocked: 14, SessionCreated: 15},
		Events:    LoginEvents{LoginSuccess: "login_success", LoginFailure: "login_failure", LoginLocked: "login_locked", AccountLocked: "account_locked"},
		Errors: LoginErrors{
			EngineNotReady:      errNotReady,
			InvalidRequest:      errBadRequest,
			AccountLocked:       errLocked,
			InvalidCredentials:  errBadCreds,
			EmailNotVerified:    errUnverified,
			IdentityUnavailable: errIdentityDown,
			UserNotFound:        errNoUser,
		},
	}
}

func (f *fixture) verifyDeps() VerifyDeps {
	return VerifyDeps{
		Now:      f.clock,
		Sessions: f.sessions.deps(),
		ConsumeOTP: func(_ context.Context, uid, otp string) (bool, error) {
			if f.otps[uid] == "" || f.otps[uid] != otp {
				return false, nil
			}
			delete(f.otps, uid)
			return true, nil
		},
		RecordFailure: func(context.Context, string) error {
			f.counted++
			return nil
		},
		UserByID:   f.userByID,
		IsNotFound: func(err error) bool { return errors.Is(err, errNoUser) },
		IssueTokenPair: func(uid, _ string) (string, string, error) {
			return "access-" + uid, "refresh-" + uid, nil
		},
		MetricInc: f.metric,
		EmitAudit: f.audit,
		Events:    VerifyEvents{VerifySuccess: "otp_verified", VerifyFailure: "otp_failed", RateLimited: "otp_rate_limited"},
		Errors: VerifyErrors{
			EngineNotReady: errNotReady,
			InvalidRequest: errBadRequest,
			NoPendingLogin: errNoPending,
			InvalidOTP:     errBadOTP,
			RateLimited:    errTooMany,
			UserNotFound:   errNoUser,
		},
	}
}

func (f *fixture) sessionDeps() SessionDeps {
	return SessionDeps{
		Now:               f.clock,
		InactivityTimeout: 30 * time.Minute,
		Sessions:          f.sessions.deps(),
		VerifyAccess: func(token string) (string, bool) {
			if len(token) > len("access-") && token[:len("access-")] == "access-" {
				return token[len("access-"):], true
			}
			return "", false
		},
		MetricInc: f.metric,
		EmitAudit: f.audit,
		Events:    SessionEvents{SessionExpired: "session_expired", Logout: "logout", TokenMismatch: "token_mismatch"},
		Errors: SessionErrors{
			EngineNotReady:   errNotReady,
			NotAuthenticated: errNotAuthed,
			SessionExpired:   errExpired,
			InvalidToken:     errBadToken,
		},
	}
}

func (f *fixture) authenticate(t *testing.T) string {
	t.Helper()
	res, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := RunVerifyOTP(context.Background(), res.SessionID, "123456", f.verifyDeps()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return res.SessionID
}

func TestLoginEndsInPendingState(t *testing.T) {
	f := newFixture()
	res, err := RunLogin(context.Background(), LoginRequest{Email: " Alice@Example.com ", Password: "correct"}, f.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Destination != "a***e@example.com" {
		t.Fatalf("unexpected destination %q", res.Destination)
	}
	sess, ok := f.sessions.get(res.SessionID)
	if !ok {
		t.Fatalf("session not saved")
	}
	if !sess.Pending() || sess.Authenticated() {
		t.Fatalf("expected pending session, got %+v", sess)
	}
	if f.otps["u1"] != "123456" {
		t.Fatalf("otp not stored")
	}
	if len(f.attempts) != 1 || f.attempts[0] != "ok" {
		t.Fatalf("unexpected attempts %v", f.attempts)
	}
}

func TestLoginRejectsEmptyInput(t *testing.T) {
	f := newFixture()
	if _, err := RunLogin(context.Background(), LoginRequest{Email: "  ", Password: "x"}, f.loginDeps()); !errors.Is(err, errBadRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := RunLogin(context.Background(), LoginRequest{}, LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected engine not ready, got %v", err)
	}
}

func TestLoginLocksOnFifthFailure(t *testing.T) {
	f := newFixture()
	deps := f.loginDeps()
	for i := 0; i < 5; i++ {
		_, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "wrong"}, deps)
		if !errors.Is(err, errBadCreds) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}
	_, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, deps)
	if !errors.Is(err, errLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	if got := f.attempts[len(f.attempts)-1]; got != "account_locked" {
		t.Fatalf("expected locked attempt reason, got %q", got)
	}

	f.now = f.now.Add(16 * time.Minute)
	f.failures = 0
	if _, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, deps); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
}

func TestLoginNotifiesOnLock(t *testing.T) {
	f := newFixture()
	f.failures = 4
	deps := f.loginDeps()
	var notified time.Time
	deps.NotifyLocked = func(_ context.Context, _ string, until time.Time) { notified = until }
	if _, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "wrong"}, deps); !errors.Is(err, errBadCreds) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if !notified.Equal(f.now.Add(15 * time.Minute)) {
		t.Fatalf("expected lock notification, got %v", notified)
	}
}

func TestLoginProviderFailureIsNotCounted(t *testing.T) {
	f := newFixture()
	f.identityErr = context.DeadlineExceeded
	_, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if !errors.Is(err, errIdentityDown) {
		t.Fatalf("expected identity unavailable, got %v", err)
	}
	if f.failures != 0 {
		t.Fatalf("provider failure must not feed the lockout policy")
	}
	if f.attempts[0] != "provider_unavailable" {
		t.Fatalf("unexpected reason %q", f.attempts[0])
	}
}

func TestLoginUnverifiedEmail(t *testing.T) {
	f := newFixture()
	f.identity.EmailVerified = false
	_, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if !errors.Is(err, errUnverified) {
		t.Fatalf("expected email not verified, got %v", err)
	}
	if len(f.otps) != 0 {
		t.Fatalf("no otp should be issued")
	}
	if f.attempts[0] != "email_not_verified" {
		t.Fatalf("unexpected reason %q", f.attempts[0])
	}
}

func TestIssueOTPBackupRequiresVerifiedAddress(t *testing.T) {
	f := newFixture()
	user := User{ID: "u1", Email: "alice@example.com", BackupEmail: "alt@example.com"}
	if _, err := RunIssueOTP(context.Background(), user, true, "sid", f.otpDeps()); !errors.Is(err, errNoBackup) {
		t.Fatalf("expected no verified backup, got %v", err)
	}
	if len(f.otps) != 0 {
		t.Fatalf("otp must not be stored before the destination is checked")
	}

	user.BackupVerified = true
	dest, err := RunIssueOTP(context.Background(), user, true, "sid", f.otpDeps())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if dest != "a***t@example.com" || f.sent[0] != "alt@example.com" {
		t.Fatalf("unexpected destination %q sent=%v", dest, f.sent)
	}
}

func TestIssueOTPMailFailureClearsCode(t *testing.T) {
	f := newFixture()
	f.mailErr = errors.New("smtp down")
	_, err := RunIssueOTP(context.Background(), f.users["u1"], false, "sid", f.otpDeps())
	if !errors.Is(err, errMail) {
		t.Fatalf("expected mail dispatch failure, got %v", err)
	}
	if _, ok := f.otps["u1"]; ok {
		t.Fatalf("otp should be cleared after a failed send")
	}
}

func TestResendRequiresPendingLogin(t *testing.T) {
	f := newFixture()
	if _, err := RunResendOTP(context.Background(), "missing", false, f.otpDeps()); !errors.Is(err, errNoPending) {
		t.Fatalf("expected no pending login, got %v", err)
	}

	res, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := RunResendOTP(context.Background(), res.SessionID, false, f.otpDeps()); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(f.sent) != 2 {
		t.Fatalf("expected two mails, got %d", len(f.sent))
	}
}

func TestVerifyOTPMismatchLeavesStateUnchanged(t *testing.T) {
	f := newFixture()
	res, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := RunVerifyOTP(context.Background(), res.SessionID, "000000", f.verifyDeps()); !errors.Is(err, errBadOTP) {
		t.Fatalf("expected invalid otp, got %v", err)
	}
	sess, _ := f.sessions.get(res.SessionID)
	if !sess.Pending() {
		t.Fatalf("session should still be pending")
	}
	if f.counted != 1 {
		t.Fatalf("expected one counted failure, got %d", f.counted)
	}

	out, err := RunVerifyOTP(context.Background(), res.SessionID, "123456", f.verifyDeps())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.AccessToken != "access-u1" || out.User.Email != "alice@example.com" {
		t.Fatalf("unexpected result %+v", out)
	}
	sess, _ = f.sessions.get(res.SessionID)
	if !sess.Authenticated() || sess.Pending() {
		t.Fatalf("expected authenticated session, got %+v", sess)
	}

	if _, err := RunVerifyOTP(context.Background(), res.SessionID, "123456", f.verifyDeps()); !errors.Is(err, errBadOTP) {
		t.Fatalf("expected replayed otp to be rejected, got %v", err)
	}
}

func TestVerifyOTPUserLookupFailureKeepsCode(t *testing.T) {
	f := newFixture()
	res, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	dbDown := errors.New("db down")
	deps := f.verifyDeps()
	deps.UserByID = func(context.Context, string) (User, error) { return User{}, dbDown }
	if _, err := RunVerifyOTP(context.Background(), res.SessionID, "123456", deps); !errors.Is(err, dbDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if f.otps["u1"] != "123456" {
		t.Fatal("code consumed although the user lookup failed")
	}

	if _, err := RunVerifyOTP(context.Background(), res.SessionID, "123456", f.verifyDeps()); err != nil {
		t.Fatalf("verify after recovery: %v", err)
	}
}

func TestVerifyOTPRateLimited(t *testing.T) {
	f := newFixture()
	res, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	deps := f.verifyDeps()
	deps.CheckAttempts = func(context.Context, string) error { return errTooMany }
	deps.IsRateLimited = func(err error) bool { return errors.Is(err, errTooMany) }
	if _, err := RunVerifyOTP(context.Background(), res.SessionID, "123456", deps); !errors.Is(err, errTooMany) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if f.otps["u1"] == "" {
		t.Fatalf("rate limited verify must not consume the otp")
	}
}

func TestAuthorizeTouchesAndExpires(t *testing.T) {
	f := newFixture()
	sid := f.authenticate(t)

	f.now = f.now.Add(29 * time.Minute)
	out, err := RunAuthorize(context.Background(), sid, "access-u1", f.sessionDeps())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !out.LastActivity.Equal(f.now) {
		t.Fatalf("last activity not bumped: %v", out.LastActivity)
	}

	f.now = f.now.Add(30*time.Minute + time.Second)
	if _, err := RunAuthorize(context.Background(), sid, "", f.sessionDeps()); !errors.Is(err, errExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if _, ok := f.sessions.get(sid); ok {
		t.Fatalf("expired session should be destroyed")
	}
	if _, err := RunAuthorize(context.Background(), sid, "", f.sessionDeps()); !errors.Is(err, errNotAuthed) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

func TestAuthorizeAfterConcurrentLogout(t *testing.T) {
	f := newFixture()
	sid := f.authenticate(t)

	deps := f.sessionDeps()
	load := deps.Sessions.Load
	deps.Sessions.Load = func(ctx context.Context, id string) (*session.Session, error) {
		sess, err := load(ctx, id)
		if err == nil && sess != nil {
			if err := RunLogout(ctx, id, f.sessionDeps()); err != nil {
				t.Fatalf("logout: %v", err)
			}
		}
		return sess, err
	}

	if _, err := RunAuthorize(context.Background(), sid, "", deps); !errors.Is(err, errNotAuthed) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if _, ok := f.sessions.get(sid); ok {
		t.Fatal("authorize resurrected a logged out session")
	}
}

func TestAuthorizeRejectsForeignToken(t *testing.T) {
	f := newFixture()
	sid := f.authenticate(t)
	if _, err := RunAuthorize(context.Background(), sid, "access-u2", f.sessionDeps()); !errors.Is(err, errBadToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := RunAuthorize(context.Background(), sid, "garbage", f.sessionDeps()); !errors.Is(err, errBadToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestStatusReportsStates(t *testing.T) {
	f := newFixture()
	deps := f.sessionDeps()

	st, err := RunStatus(context.Background(), "", "", "", deps)
	if err != nil || st.State != StateAnonymous {
		t.Fatalf("expected anonymous, got %+v err=%v", st, err)
	}

	res, err := RunLogin(context.Background(), LoginRequest{Email: "alice@example.com", Password: "correct"}, f.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	st, _ = RunStatus(context.Background(), res.SessionID, "", "", deps)
	if st.State != StatePendingOTP {
		t.Fatalf("expected pending, got %s", st.State)
	}

	if _, err := RunVerifyOTP(context.Background(), res.SessionID, "123456", f.verifyDeps()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	st, _ = RunStatus(context.Background(), res.SessionID, "access-u1", "r", deps)
	if st.State != StateAuthenticated || st.User == nil || st.User.Name != "Alice" {
		t.Fatalf("expected authenticated, got %+v", st)
	}
	if !st.HasAccessToken || !st.AccessTokenValid || !st.HasRefreshToken {
		t.Fatalf("unexpected token flags %+v", st)
	}

	f.now = f.now.Add(31 * time.Minute)
	st, _ = RunStatus(context.Background(), res.SessionID, "", "", deps)
	if st.State != StateExpired {
		t.Fatalf("expected expired, got %s", st.State)
	}
	if _, ok := f.sessions.get(res.SessionID); ok {
		t.Fatalf("expired session should be destroyed")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture()
	sid := f.authenticate(t)
	deps := f.sessionDeps()
	if err := RunLogout(context.Background(), sid, deps); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := RunLogout(context.Background(), sid, deps); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if _, ok := f.sessions.get(sid); ok {
		t.Fatalf("session should be gone")
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	f := newFixture()
	deps := RefreshDeps{
		VerifyRefresh: func(token string) (string, bool) {
			if token == "refresh-u1" || token == "refresh-ghost" {
				return token[len("refresh-"):], true
			}
			return "", false
		},
		UserByID:   f.userByID,
		IsNotFound: func(err error) bool { return errors.Is(err, errNoUser) },
		IssueTokenPair: func(uid, _ string) (string, string, error) {
			return "access-" + uid, "refresh-" + uid, nil
		},
		Errors: RefreshErrors{EngineNotReady: errNotReady, InvalidToken: errBadToken},
	}

	out, err := RunRefresh(context.Background(), "refresh-u1", deps)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if out.UserID != "u1" || out.AccessToken != "access-u1" {
		t.Fatalf("unexpected result %+v", out)
	}
	if _, err := RunRefresh(context.Background(), "junk", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := RunRefresh(context.Background(), "refresh-ghost", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected invalid token for missing user, got %v", err)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"alice@example.com": "a***e@example.com",
		"ab@example.com":    "a*@example.com",
		"a@example.com":     "*@example.com",
		"nope":              "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
