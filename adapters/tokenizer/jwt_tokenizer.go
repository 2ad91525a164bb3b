package tokenizer

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tollgate-labs/tollgate/core"
	"github.com/tollgate-labs/tollgate/ports"
)

// JWTTokenizer implements the SessionTokenizer interface using HS256 JWTs.
// The server is both issuer and sole verifier, so a symmetric secret
// suffices; no key distribution is needed.
type JWTTokenizer struct {
	secret []byte

	// Now is the clock used for iat/exp and validation. Overridable in tests.
	Now func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer signing with the given secret
func NewJWTTokenizer(secret []byte) *JWTTokenizer {
	return &JWTTokenizer{
		secret: secret,
		Now:    time.Now,
	}
}

var _ ports.SessionTokenizer = (*JWTTokenizer)(nil)

// Issue produces a signed session token for the subject
func (j *JWTTokenizer) Issue(subject string, hasAccess bool, ttl time.Duration) (string, error) {
	now := j.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		HasAccess: hasAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// Validate parses and verifies a session token. Any failure — bad signature,
// expiry, wrong audience, malformed input — collapses to core.ErrInvalidToken
// so callers cannot be used as a verification oracle.
func (j *JWTTokenizer) Validate(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithAudience(AudienceSession), jwt.WithTimeFunc(func() time.Time { return j.Now() }))

	if err != nil || !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.Subject == "" {
		return nil, core.ErrInvalidToken
	}

	return &core.Session{
		Address:   claims.Subject,
		HasAccess: claims.HasAccess,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
