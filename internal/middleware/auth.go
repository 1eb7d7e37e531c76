package middleware

import (
	"crypto/rsa"

	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/pkg/capability"
	"github.com/worldindex/core/internal/pkg/response"
)

const (
	contextKeyAdmin       = "is_admin"
	contextKeyOwnerClaims = "owner_claims"
)

// AdminAuth enforces the admin capability cookie, validated against the
// system actor's public key.
func AdminAuth(pub *rsa.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(capability.AdminCookie)
		if err != nil || token == "" {
			response.Unauthorized(c)
			return
		}
		if err := capability.ParseAdmin(pub, token); err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(contextKeyAdmin, true)
		c.Next()
	}
}

// DetectAdmin marks the request as admin when a valid capability cookie is
// present, without requiring one. The rate limiter exempts admin sessions.
func DetectAdmin(pub *rsa.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(capability.AdminCookie)
		if err == nil && token != "" && capability.ParseAdmin(pub, token) == nil {
			c.Set(contextKeyAdmin, true)
		}
		c.Next()
	}
}

// OwnerAuth validates the owner capability cookie and stashes its claims.
// It does NOT check which listing the capability is scoped to; handlers must
// compare claims.ListingID against the target listing themselves.
func OwnerAuth(pub *rsa.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(capability.OwnerCookie)
		if err != nil || token == "" {
			response.Unauthorized(c)
			return
		}
		claims, err := capability.ParseOwner(pub, token)
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(contextKeyOwnerClaims, claims)
		c.Next()
	}
}

// OwnerClaims returns the validated owner capability claims, if any.
func OwnerClaims(c *gin.Context) *capability.OwnerClaims {
	v, _ := c.Get(contextKeyOwnerClaims)
	claims, _ := v.(*capability.OwnerClaims)
	return claims
}

// IsAdmin reports whether the request carries a valid admin capability.
func IsAdmin(c *gin.Context) bool {
	v, _ := c.Get(contextKeyAdmin)
	ok, _ := v.(bool)
	return ok
}
