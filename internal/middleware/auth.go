package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lalith-99/areachat/internal/auth"
)

// Context key for the verified session identity. A constant so handlers
// and middleware can't drift apart on the spelling.
const ContextKeySession = "session_context"

// AuthMiddleware validates the bearer token on REST requests and stores
// the resulting SessionContext for handlers downstream. Invalid or
// missing tokens abort with 401 before any handler runs.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeySession, auth.NewSessionContext(claims))
		c.Next()
	}
}

// GetSession returns the identity the middleware stored. The zero value
// means the middleware did not run; scoped queries on it match nothing.
func GetSession(c *gin.Context) auth.SessionContext {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return auth.SessionContext{}
	}
	sctx, ok := val.(auth.SessionContext)
	if !ok {
		return auth.SessionContext{}
	}
	return sctx
}
