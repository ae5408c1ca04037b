// Command otpgated serves the otpgate HTTP API.
//
// Configuration comes from OTPGATE_* environment variables, optionally loaded
// from a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/otpgate"
	"github.com/MrEthical07/otpgate/identity"
	"github.com/MrEthical07/otpgate/internal/config"
	"github.com/MrEthical07/otpgate/internal/httpapi"
	"github.com/MrEthical07/otpgate/internal/logging"
	"github.com/MrEthical07/otpgate/internal/rate"
	"github.com/MrEthical07/otpgate/internal/telemetry"
	"github.com/MrEthical07/otpgate/mail"
	"github.com/MrEthical07/otpgate/metrics/export/prometheus"
	"github.com/MrEthical07/otpgate/password"
	"github.com/MrEthical07/otpgate/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "otpgated: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Init(logging.Config{
		Level: cfg.LogLevel,
		Dev:   cfg.LogDev,
		File:  cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	idOpts := []identity.Option{identity.WithLogger(logger)}
	if cfg.RequireEmailVerification {
		idOpts = append(idOpts,
			identity.WithVerificationMailer(mailer, cfg.AppName),
			identity.WithVerificationLimits(cfg.VerifyMaxAttempts, cfg.VerifyMaxResends, time.Hour),
		)
	}
	local, err := identity.NewLocal(rdb, password.DefaultConfig(), idOpts...)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}

	sink, closeSink, err := newAuditSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink.Close()

	engineCfg := cfg.Engine()
	engine, err := otpgate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithDB(db).
		WithIdentityProvider(local).
		WithMailer(mailer).
		WithLogger(logger).
		WithAuditSink(sink).
		WithTracerProvider(tp).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		zap.Bool("production", report.ProductionMode),
		zap.String("signing_algorithm", report.SigningAlgorithm),
		zap.Duration("inactivity_timeout", report.InactivityTimeout),
		zap.Int("lockout_threshold", report.LockoutThreshold),
		zap.String("field_encryption", report.FieldEncryption),
	)
	for _, w := range report.Warnings {
		logger.Warn("security warning", zap.String("warning", w))
	}

	api := httpapi.New(httpapi.Options{
		Engine:        engine,
		EmailVerifier: local,
		Limiter: rate.New(rdb, rate.Config{
			Prefix: "otpgate:api",
			Limit:  cfg.RateLimitPerIP,
			Window: time.Minute,
		}),
		Metrics:      prometheus.New(engine).Handler(),
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
		AccessTTL:    engineCfg.JWT.AccessTTL,
		RefreshTTL:   engineCfg.JWT.RefreshTTL,
		SessionTTL:   engineCfg.Session.AbsoluteLifetime,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("version", version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newMailer(cfg config.Config, logger *zap.Logger) (otpgate.Mailer, error) {
	if cfg.SMTPAddr == "" {
		logger.Warn("no SMTP relay configured; mail is logged, not delivered")
		return mail.NewLogMailer(logger, !cfg.ProductionMode), nil
	}
	m, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: smtp: %v", otpgate.ErrConfiguration, err)
	}
	return m, nil
}

// newAuditSink logs audit events through zap and, when an audit file is
// configured, appends them to it as JSON lines.
func newAuditSink(cfg config.Config, logger *zap.Logger) (otpgate.AuditSink, io.Closer, error) {
	zs := otpgate.NewZapSink(logger)
	if cfg.AuditFile == "" {
		return zs, nopCloser{}, nil
	}
	f, err := os.OpenFile(cfg.AuditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit file: %w", err)
	}
	return otpgate.MultiSink{zs, otpgate.NewJSONWriterSink(f)}, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
