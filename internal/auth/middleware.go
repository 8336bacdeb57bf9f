package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

// Middleware requires a valid bearer token on every path except public.
// WebSocket clients cannot set headers from a browser, so a token query
// parameter is accepted too.
func Middleware(tokens TokenService, gens *Generations, public ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokens.Enabled() || slices.Contains(public, c.Request.URL.Path) {
			c.Next()
			return
		}

		raw := bearer(c)
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		if gens != nil {
			if err := gens.Check(c.Request.Context(), claims); err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrStaleToken) {
					msg = err.Error()
				}
				c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
				c.Abort()
				return
			}
		}
		if claims.Scope == ScopeRead && !safeMethod(c.Request.Method) {
			c.JSON(http.StatusForbidden, gin.H{"error": "read-only token"})
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h != "" && strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return c.Query("token")
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
