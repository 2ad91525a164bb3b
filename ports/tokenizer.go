package ports

import (
	"time"

	"github.com/tollgate-labs/tollgate/core"
)

// SessionTokenizer converts between sessions and signed bearer tokens
type SessionTokenizer interface {
	// Issue produces a signed token for the subject, embedding the
	// entitlement decision, expiring ttl from now
	Issue(subject string, hasAccess bool, ttl time.Duration) (string, error)

	// Validate parses and verifies a token. Every failure mode (missing,
	// tampered, expired, wrong audience) collapses to core.ErrInvalidToken.
	Validate(token string) (*core.Session, error)
}
