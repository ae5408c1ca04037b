package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/otpgate"
	"github.com/MrEthical07/otpgate/internal/logging"
	"github.com/MrEthical07/otpgate/internal/rate"
	"github.com/MrEthical07/otpgate/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Engine is the subset of *otpgate.Engine the routes call.
type Engine interface {
	middleware.Authorizer
	Register(ctx context.Context, req otpgate.RegisterRequest) (*otpgate.RegisterResult, error)
	Login(ctx context.Context, req otpgate.LoginRequest) (*otpgate.LoginResult, error)
	ResendOTP(ctx context.Context, req otpgate.ResendOTPRequest) (string, error)
	VerifyOTP(ctx context.Context, req otpgate.VerifyOTPRequest) (*otpgate.VerifyOTPResult, error)
	Refresh(ctx context.Context, refreshToken string) (*otpgate.TokenPair, error)
	Logout(ctx context.Context, sessionID string) error
	Status(ctx context.Context, req otpgate.StatusRequest) (*otpgate.AuthStatus, error)
	AddBackupEmail(ctx context.Context, userID, addr string) error
	VerifyBackupEmail(ctx context.Context, userID, code string) error
	TestBackupEmail(ctx context.Context, userID string) error
	UpdateSensitiveData(ctx context.Context, userID string, upd otpgate.SensitiveUpdate) error
	SensitiveData(ctx context.Context, userID string) (otpgate.SensitivePresence, error)
	DecryptSensitiveData(ctx context.Context, userID string) (otpgate.SensitivePlaintext, error)
	Ping(ctx context.Context) error
	RecordRateLimited()
}

// EmailVerifier confirms the address a new account registered with. The
// local identity provider implements it.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
}

// Options wires a Server. Engine is required.
type Options struct {
	Engine        Engine
	EmailVerifier EmailVerifier
	Limiter       *rate.Limiter
	Metrics       http.Handler
	Logger        *zap.Logger

	CookieSecure bool
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SessionTTL   time.Duration

	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
}

// Server owns the router and its middleware chain.
type Server struct {
	engine   Engine
	verifier EmailVerifier
	limiter  *rate.Limiter
	logger   *zap.Logger
	cookies  cookieJar
	handler  http.Handler
}

// New builds the router. Zero TTLs fall back to the engine defaults.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	def := otpgate.DefaultConfig()
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = def.JWT.AccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = def.JWT.RefreshTTL
	}

	s := &Server{
		engine:   opts.Engine,
		verifier: opts.EmailVerifier,
		limiter:  opts.Limiter,
		logger:   logger,
		cookies: cookieJar{
			secure:     opts.CookieSecure,
			accessTTL:  opts.AccessTTL,
			refreshTTL: opts.RefreshTTL,
			sessionTTL: opts.SessionTTL,
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	auth := r.PathPrefix("/auth").Subrouter()
	auth.Use(s.clientContext, s.rateLimit)
	auth.HandleFunc("/register", s.register).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.login).Methods(http.MethodPost)
	auth.HandleFunc("/resend-otp", s.resendOTP).Methods(http.MethodPost)
	auth.HandleFunc("/verify-otp", s.verifyOTP).Methods(http.MethodPost)
	auth.HandleFunc("/refresh-token", s.refresh).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	auth.HandleFunc("/check-auth", s.checkAuth).Methods(http.MethodGet)
	if s.verifier != nil {
		auth.HandleFunc("/verify-email", s.verifyEmail).Methods(http.MethodPost)
		auth.HandleFunc("/resend-verification", s.resendVerification).Methods(http.MethodPost)
	}

	protected := auth.NewRoute().Subrouter()
	protected.Use(middleware.Guard(s.engine, middleware.TokenIfPresent, s.guardError))
	protected.HandleFunc("/add-backup-email", s.addBackupEmail).Methods(http.MethodPost)
	protected.HandleFunc("/verify-backup-email", s.verifyBackupEmail).Methods(http.MethodPost)
	protected.HandleFunc("/test-backup-email", s.testBackupEmail).Methods(http.MethodPost)
	protected.HandleFunc("/update-sensitive-data", s.updateSensitive).Methods(http.MethodPost)
	protected.HandleFunc("/sensitive-data", s.sensitiveData).Methods(http.MethodGet)
	protected.HandleFunc("/sensitive-data/decrypted", s.decryptedSensitiveData).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})

	var h http.Handler = securityHeaders(r)
	if opts.TrustProxy {
		h = handlers.ProxyHeaders(h)
	}
	h = handlers.CombinedLoggingHandler(logging.Writer(logger.Named("http")), h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zapRecoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type zapRecoveryLogger struct {
	logger *zap.Logger
}

func (l zapRecoveryLogger) Println(v ...interface{}) {
	l.logger.Error("http handler panic", zap.Any("panic", v))
}

var _ Engine = (*otpgate.Engine)(nil)
