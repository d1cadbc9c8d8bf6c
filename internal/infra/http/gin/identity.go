package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const principalContextKey = "renthub.principal"

// Identity arrives from the upstream gateway, which has already
// authenticated the caller. The core trusts these headers as-is; it performs
// no authentication itself.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type principal struct {
	ID   string
	Role string
}

// IdentityMiddleware extracts the gateway-supplied principal.
type IdentityMiddleware struct{}

func (IdentityMiddleware) Handle(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(headerUserID))
	if id == "" {
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:   id,
		Role: strings.ToLower(strings.TrimSpace(c.GetHeader(headerUserRole))),
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || p.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}
