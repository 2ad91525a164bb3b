package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tollgate-labs/tollgate/core"
	"github.com/tollgate-labs/tollgate/service"
)

// bearerToken extracts the token from the Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(auth[len("Bearer "):])
	return token, token != ""
}

// AuthMiddleware creates middleware that validates session tokens and puts
// the session claims into the request context
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrInvalidToken.Error()})
			return
		}

		sess, err := authService.CheckEntitlement(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrInvalidToken.Error()})
			return
		}

		c.Set("userAddress", sess.Address)
		c.Set("hasAccess", sess.HasAccess)

		c.Next()
	}
}
