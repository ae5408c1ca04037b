// Package httpapi exposes the engine as the JSON-over-HTTP routes used by the
// browser client.
//
// Sessions and tokens travel in HttpOnly cookies (sid, accessToken,
// refreshToken). Protected routes pass through middleware.RequireSession so
// every authenticated request refreshes the inactivity timer.
package httpapi
