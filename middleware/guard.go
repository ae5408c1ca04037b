package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/otpgate"
)

// Cookie names shared with the HTTP API.
const (
	SessionCookie = "sid"
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// TokenMode selects how the access token takes part in a guard.
type TokenMode int

const (
	// TokenIfPresent checks the access token only when the client sends one.
	TokenIfPresent TokenMode = iota
	// TokenRequired rejects requests without an access token.
	TokenRequired
)

// Authorizer is satisfied by *otpgate.Engine.
type Authorizer interface {
	Authorize(ctx context.Context, req otpgate.AuthorizeRequest) (*otpgate.AuthResult, error)
}

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*otpgate.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*otpgate.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx. Handlers normally receive it from a guard.
func WithAuthResult(ctx context.Context, res *otpgate.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard runs Authorize for the session cookie on every request. A passing
// request has its session touched and the AuthResult injected into its
// context. onError may be nil.
func Guard(a Authorizer, mode TokenMode, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = WriteError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				onError(w, r, otpgate.ErrEngineNotReady)
				return
			}

			access := AccessToken(r)
			if mode == TokenRequired && access == "" {
				onError(w, r, otpgate.ErrInvalidToken)
				return
			}

			res, err := a.Authorize(r.Context(), otpgate.AuthorizeRequest{
				SessionID:   cookieValue(r, SessionCookie),
				AccessToken: access,
			})
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// RequireSession is Guard with TokenIfPresent.
func RequireSession(a Authorizer) func(http.Handler) http.Handler {
	return Guard(a, TokenIfPresent, nil)
}

// AccessToken returns the bearer token, falling back to the access cookie.
func AccessToken(r *http.Request) string {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return cookieValue(r, AccessCookie)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

// WriteError writes a JSON error body with the status from StatusFor.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(err))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": otpgate.ErrorCode(err),
	})
}
