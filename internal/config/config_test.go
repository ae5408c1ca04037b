package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/otpgate"
	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func baseEnv() map[string]string {
	return map[string]string{
		Prefix + "JWT_SECRET":     strings.Repeat("s", 32),
		Prefix + "ENCRYPTION_KEY": testKey,
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(env.Options{Prefix: Prefix, Environment: baseEnv()})
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, 100, cfg.RateLimitPerIP)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 30*time.Minute, cfg.InactivityTimeout)
	require.Equal(t, 0, cfg.OTPMaxAttempts)
	require.Equal(t, 10, cfg.RegisterPerIP)

	eng := cfg.Engine()
	require.NoError(t, eng.Validate())
	require.Equal(t, 10, eng.Register.MaxPerIP)
	require.Equal(t, time.Hour, eng.Register.Window)
	require.Len(t, eng.Encryption.Key, 32)
	require.Equal(t, byte(0x1f), eng.Encryption.Key[31])
}

func TestParseOverrides(t *testing.T) {
	vars := baseEnv()
	vars[Prefix+"HTTP_ADDR"] = "127.0.0.1:9000"
	vars[Prefix+"OTP_MAX_ATTEMPTS"] = "5"
	vars[Prefix+"INACTIVITY_TIMEOUT"] = "45m"
	vars[Prefix+"DB_DRIVER"] = "pgx"

	cfg, err := parse(env.Options{Prefix: Prefix, Environment: vars})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)

	eng := cfg.Engine()
	require.Equal(t, 5, eng.OTP.MaxVerifyAttempts)
	require.Equal(t, 45*time.Minute, eng.Session.InactivityTimeout)
	require.NoError(t, eng.Validate())
}

func TestParseRejectsMissingSecrets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"no jwt secret", func(m map[string]string) { delete(m, Prefix+"JWT_SECRET") }},
		{"short jwt secret", func(m map[string]string) { m[Prefix+"JWT_SECRET"] = "short" }},
		{"no encryption key", func(m map[string]string) { delete(m, Prefix+"ENCRYPTION_KEY") }},
		{"non-hex key", func(m map[string]string) { m[Prefix+"ENCRYPTION_KEY"] = strings.Repeat("z", 64) }},
		{"short key", func(m map[string]string) { m[Prefix+"ENCRYPTION_KEY"] = "0011" }},
		{"bad driver", func(m map[string]string) { m[Prefix+"DB_DRIVER"] = "mysql" }},
		{"bad duration", func(m map[string]string) { m[Prefix+"ACCESS_TTL"] = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := baseEnv()
			tt.mutate(vars)
			_, err := parse(env.Options{Prefix: Prefix, Environment: vars})
			require.ErrorIs(t, err, otpgate.ErrConfiguration)
		})
	}
}
