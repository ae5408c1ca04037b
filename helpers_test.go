package otpgate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/otpgate/mail"
	"github.com/MrEthical07/otpgate/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAccount struct {
	id       string
	password string
	verified bool
}

// fakeIdentity is an in-memory IdentityProvider. Setting down makes every
// call fail as an outage.
type fakeIdentity struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount
	down     error
	calls    int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]fakeAccount{}}
}

func (f *fakeIdentity) add(id, email, password string, verified bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[store.NormalizeEmail(email)] = fakeAccount{id: id, password: password, verified: verified}
}

func (f *fakeIdentity) VerifyCredentials(_ context.Context, email, password string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down != nil {
		return Identity{}, f.down
	}
	acct, ok := f.accounts[email]
	if !ok || acct.password != password {
		return Identity{}, fmt.Errorf("fake: %w", ErrInvalidCredentials)
	}
	return Identity{UserID: acct.id, EmailVerified: acct.verified}, nil
}

func (f *fakeIdentity) Register(_ context.Context, email, password, _ string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down != nil {
		return Identity{}, f.down
	}
	if _, ok := f.accounts[email]; ok {
		return Identity{}, fmt.Errorf("fake: %w", ErrDuplicateEmail)
	}
	id := fmt.Sprintf("user-%d", len(f.accounts)+1)
	f.accounts[email] = fakeAccount{id: id, password: password, verified: true}
	return Identity{UserID: id, EmailVerified: true}, nil
}

type testEnv struct {
	engine   *Engine
	redis    *miniredis.Miniredis
	db       *sqlx.DB
	store    *store.Store
	identity *fakeIdentity
	outbox   *mail.Outbox
	clock    *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("test-signing-secret-at-least-32-bytes!!")
	cfg.Encryption.Key = append([]byte(nil), testEncryptionKey...)
	cfg.Metrics.Enabled = true
	return cfg
}

type envOption func(*Config, *Builder)

func withAuditSink(sink AuditSink) envOption {
	return func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
		cfg.Audit.DropIfFull = false
		b.WithAuditSink(sink)
	}
}

func withConfig(mutate func(*Config)) envOption {
	return func(cfg *Config, _ *Builder) { mutate(cfg) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	mr, rdb := newTestRedis(t)

	db, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		redis:    mr,
		db:       db,
		store:    store.New(db),
		identity: newFakeIdentity(),
		outbox:   &mail.Outbox{},
		clock:    newTestClock(),
	}

	cfg := testConfig()
	b := New().
		WithRedis(rdb).
		WithDB(db).
		WithIdentityProvider(env.identity).
		WithMailer(env.outbox).
		WithClock(env.clock)
	for _, opt := range opts {
		opt(&cfg, b)
	}
	b.WithConfig(cfg)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// seed registers alice in both the identity provider and the credential store.
func (env *testEnv) seed(t *testing.T) string {
	t.Helper()
	env.identity.add("u-alice", "alice@example.com", "correct-horse", true)
	if _, err := env.store.CreateUser(context.Background(), store.NewUser{
		ID:    "u-alice",
		Email: "alice@example.com",
		Name:  "Alice",
	}, env.clock.Now()); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return "u-alice"
}

// lastOTP returns the code from the newest message sent to addr.
func (env *testEnv) lastOTP(t *testing.T, addr string) string {
	t.Helper()
	msg, ok := env.outbox.Last(addr)
	if !ok {
		t.Fatalf("no mail sent to %s", addr)
	}
	for _, field := range strings.Fields(msg.Body) {
		field = strings.Trim(field, ".:,")
		if len(field) == 6 && strings.Trim(field, "0123456789") == "" {
			return field
		}
	}
	t.Fatalf("no code in mail body %q", msg.Body)
	return ""
}

func (env *testEnv) login(t *testing.T, sessionID, password string) (*LoginResult, error) {
	t.Helper()
	return env.engine.Login(context.Background(), LoginRequest{
		SessionID: sessionID,
		Email:     "alice@example.com",
		Password:  password,
	})
}

// authenticate runs the full login + OTP flow and returns the session and tokens.
func (env *testEnv) authenticate(t *testing.T) *VerifyOTPResult {
	t.Helper()
	res, err := env.login(t, "", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := env.engine.VerifyOTP(context.Background(), VerifyOTPRequest{
		SessionID: res.SessionID,
		OTP:       env.lastOTP(t, "alice@example.com"),
	})
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	return out
}
