package core

import (
	"errors"
)

var (
	// ErrMalformedRequest is returned when the request body is missing fields
	// or the address is not a valid chain address
	ErrMalformedRequest = errors.New("malformed request")

	// ErrMalformedChallenge is returned when the challenge message is missing
	// a required field
	ErrMalformedChallenge = errors.New("malformed challenge message")

	// ErrInvalidNonce is returned when the nonce is unknown, expired or
	// already consumed
	ErrInvalidNonce = errors.New("invalid or expired nonce")

	// ErrInvalidDomain is returned when the challenge domain is not on the
	// configured allow-list
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrInvalidChainID is returned when the challenge chain id does not match
	// the configured chain
	ErrInvalidChainID = errors.New("invalid chain id")

	// ErrStaleMessage is returned when the challenge validity window does not
	// cover the current time, or its timestamps do not parse
	ErrStaleMessage = errors.New("stale or invalid challenge message")

	// ErrInvalidSignature is returned when the signature does not recover to
	// the claimed address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInsufficientBalance is returned when the on-chain balance is below
	// the configured threshold
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrInvalidToken is returned for every session token validation failure
	ErrInvalidToken = errors.New("invalid token")
)
