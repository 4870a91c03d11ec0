package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Bearer enforces HS256 access tokens and stores the claims on the context.
func Bearer(s *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, deny("Unauthorized", "missing bearer token"))
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := s.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, deny("Unauthorized", "invalid token"))
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Require aborts with 403 unless the caller holds at least one of caps.
func Require(caps ...Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := FromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, deny("Unauthorized", "unauthenticated"))
			return
		}
		for _, cp := range caps {
			if Can(claims.Role, cp) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, deny("Forbidden", "role lacks the required capability"))
	}
}

// FromContext returns the claims set by Bearer.
func FromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func deny(kind, msg string) gin.H {
	return gin.H{"ok": false, "errorKind": kind, "message": msg}
}
