package httpapi

import (
	"errors"
	"net"
	"net/http"

	"github.com/MrEthical07/otpgate"
	"github.com/MrEthical07/otpgate/internal/rate"
	"go.uber.org/zap"
)

// clientContext copies the caller address and user agent into the request
// context for audit events.
func (s *Server) clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otpgate.WithClientIP(r.Context(), clientIP(r))
		ctx = otpgate.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit applies the per-IP fixed window. A Redis failure lets the
// request through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.limiter.Hit(r.Context(), clientIP(r)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				s.engine.RecordRateLimited()
				w.Header().Set("Retry-After", "60")
				s.fail(w, r, otpgate.ErrRateLimited)
				return
			}
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
		h.Set("Cache-Control", "no-store")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
