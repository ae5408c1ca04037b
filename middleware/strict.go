package middleware

import "net/http"

// RequireStrict demands both a live session and a matching access token.
func RequireStrict(a Authorizer) func(http.Handler) http.Handler {
	return Guard(a, TokenRequired, nil)
}
