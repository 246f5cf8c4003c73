package domain

import "time"

// Session is a browser login session, issued by the out-of-scope OAuth
// front and consumed (read-only, signature-verified) by the hub's Acceptor.
type Session struct {
	CookieValue string
	UserID      string
	ExpiresAt   time.Time
}

// Expired reports whether the session has passed its expiry at t.
func (s Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && t.After(s.ExpiresAt)
}

// User is an opaque identifier; the hub never dereferences a user beyond
// its id.
type User struct {
	ID string
}
