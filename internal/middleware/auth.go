// internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"casebook/internal/auth"

	"github.com/gin-gonic/gin"
)

const (
	// AuthCookie carries the session token for browser clients.
	AuthCookie = "auth_token"
	// UserIDKey is the gin context key holding the authenticated user id.
	UserIDKey = "userID"
)

// AuthMiddleware accepts a bearer token in the Authorization header, falling
// back to the auth cookie, and stores the user id under UserIDKey.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if cookie, err := c.Cookie(AuthCookie); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		userID, err := tokens.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
