package ports

import "time"

// NonceStore is the registry of outstanding single-use challenge nonces
type NonceStore interface {
	// Issue generates a random nonce and records it with an absolute expiry
	// of now+ttl
	Issue(ttl time.Duration) (string, error)

	// Consume removes the nonce and reports whether it existed and had not
	// expired. Removal happens on every lookup, so a nonce is spendable at
	// most once regardless of outcome, and two concurrent consumes of the
	// same value cannot both succeed.
	Consume(value string) bool
}
