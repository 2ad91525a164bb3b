package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tollgate-labs/tollgate/core"
	"github.com/tollgate-labs/tollgate/service"
)

// AuthHandlers contains HTTP handlers for the gating endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Nonce handles the nonce request
func (h *AuthHandlers) Nonce(c *gin.Context) {
	result, err := h.authService.RequestNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":     result.Nonce,
		"expiresIn": result.ExpiresIn,
	})
}

// Verify handles the signed-challenge verification request
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrMalformedRequest.Error()})
		return
	}

	result, err := h.authService.Verify(c.Request.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		h.verifyError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jwt":       result.Token,
		"balance":   result.Balance,
		"threshold": result.Threshold,
		"decimals":  result.Decimals,
	})
}

func (h *AuthHandlers) verifyError(c *gin.Context, result *service.VerifyResult, err error) {
	switch {
	case errors.Is(err, core.ErrInsufficientBalance):
		c.JSON(http.StatusForbidden, gin.H{
			"error":     core.ErrInsufficientBalance.Error(),
			"balance":   result.Balance,
			"threshold": result.Threshold,
			"decimals":  result.Decimals,
		})
	case errors.Is(err, core.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrInvalidSignature.Error()})
	case errors.Is(err, core.ErrMalformedRequest),
		errors.Is(err, core.ErrMalformedChallenge),
		errors.Is(err, core.ErrInvalidNonce),
		errors.Is(err, core.ErrInvalidDomain),
		errors.Is(err, core.ErrInvalidChainID),
		errors.Is(err, core.ErrStaleMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": shortMessage(err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
	}
}

// Refresh handles session token renewal
func (h *AuthHandlers) Refresh(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrInvalidToken.Error()})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInsufficientBalance):
			c.JSON(http.StatusForbidden, gin.H{
				"error":     core.ErrInsufficientBalance.Error(),
				"balance":   result.Figures.Balance,
				"threshold": result.Figures.Threshold,
				"decimals":  result.Figures.Decimals,
			})
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrInvalidToken.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jwt":          result.Token,
		"remainingSec": result.RemainingSec,
		"refreshed":    result.Refreshed,
	})
}

// Entitlement reports the entitlement carried by the presented token. The
// auth middleware has already validated the token and stashed its claims.
func (h *AuthHandlers) Entitlement(c *gin.Context) {
	address := c.GetString("userAddress")
	hasAccess := c.GetBool("hasAccess")

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"address":   address,
		"hasAccess": hasAccess,
	})
}

// Healthz is the liveness probe
func (h *AuthHandlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// shortMessage strips wrapped detail down to the sentinel's own message so
// error responses stay terse
func shortMessage(err error) string {
	for _, sentinel := range []error{
		core.ErrMalformedRequest,
		core.ErrMalformedChallenge,
		core.ErrInvalidNonce,
		core.ErrInvalidDomain,
		core.ErrInvalidChainID,
		core.ErrStaleMessage,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
