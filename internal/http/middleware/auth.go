// README: Firebase bearer-token auth middleware; puts the caller UID in context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"waypool/internal/infra"
)

const (
	uidKey    = "auth_uid"
	claimsKey = "auth_claims"
)

func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		t, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(uidKey, t.UID)
		c.Set(claimsKey, t.Claims)
		c.Next()
	}
}

// UID returns the verified caller identity set by Auth.
func UID(c *gin.Context) string {
	return c.GetString(uidKey)
}

// Claim reads a single custom claim from the verified token.
func Claim(c *gin.Context, name string) (interface{}, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	val, ok := claims[name]
	return val, ok
}
