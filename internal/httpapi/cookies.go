package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/otpgate"
	"github.com/MrEthical07/otpgate/middleware"
)

type cookieJar struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
	sessionTTL time.Duration
}

func (c cookieJar) cookie(name, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl / time.Second)
	}
	return ck
}

func (c cookieJar) setSession(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, c.cookie(middleware.SessionCookie, sessionID, c.sessionTTL))
}

func (c cookieJar) setTokens(w http.ResponseWriter, pair otpgate.TokenPair) {
	http.SetCookie(w, c.cookie(middleware.AccessCookie, pair.AccessToken, c.accessTTL))
	http.SetCookie(w, c.cookie(middleware.RefreshCookie, pair.RefreshToken, c.refreshTTL))
}

func (c cookieJar) clear(w http.ResponseWriter) {
	for _, name := range []string{middleware.SessionCookie, middleware.AccessCookie, middleware.RefreshCookie} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		http.SetCookie(w, ck)
	}
}

func readCookie(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
