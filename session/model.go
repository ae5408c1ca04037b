package session

// Session is the server-side state bound to one client.
//
// A session is anonymous until PendingUserID is set by a successful primary
// credential check, and authenticated once UserID is set after OTP
// verification. At most one of the two is populated at a time.
type Session struct {
	SessionID string

	PendingUserID string
	PendingAt     int64

	UserID string
	Email  string
	Name   string

	// LastActivity and CreatedAt are unix milliseconds.
	LastActivity int64
	CreatedAt    int64
}

// Authenticated reports whether an OTP-verified user is attached.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// Pending reports whether a login is waiting for its OTP.
func (s *Session) Pending() bool {
	return s != nil && s.PendingUserID != ""
}

// SetPending moves the session into the pending-OTP state for userID.
func (s *Session) SetPending(userID string, nowMillis int64) {
	s.PendingUserID = userID
	s.PendingAt = nowMillis
	s.UserID = ""
	s.Email = ""
	s.Name = ""
}

// Promote attaches the authenticated user projection and clears the pending reference.
func (s *Session) Promote(userID, email, name string, nowMillis int64) {
	s.PendingUserID = ""
	s.PendingAt = 0
	s.UserID = userID
	s.Email = email
	s.Name = name
	s.LastActivity = nowMillis
}
