package core

import "time"

// Session represents the authenticated state carried inside a session token
type Session struct {
	Address   string    // Chain address of the holder
	HasAccess bool      // Entitlement decision frozen at issue time
	IssuedAt  time.Time // When the token was issued
	ExpiresAt time.Time // When the token stops validating
}

// RemainingSeconds returns the seconds until expiry at the given instant.
// Negative when the session has already expired.
func (s *Session) RemainingSeconds(now time.Time) int64 {
	return int64(s.ExpiresAt.Sub(now) / time.Second)
}
