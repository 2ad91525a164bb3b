package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AudienceSession discriminates session tokens from any other JWT signed
// with the same secret
const AudienceSession = "tollgate:session"

// SessionClaims combines standard claims with the entitlement flag
type SessionClaims struct {
	jwt.RegisteredClaims
	HasAccess bool `json:"has_access"`
}
