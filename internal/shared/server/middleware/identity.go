package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"research-backend/internal/shared/server/respond"
)

const userIDKey = "userId"

// TokenVerifier resolves a bearer token to a user ID. Token issuance and
// validation live in the identity service; the API only consumes its verdict.
type TokenVerifier func(token string) (userID string, err error)

// Identity resolves the caller's user ID and stores it in the request context.
// A bearer token is verified through the identity collaborator; the X-User-Id
// header is honored as a gateway-injected fallback.
func Identity(verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" || verify == nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			userID, err := verify(token)
			if err != nil || strings.TrimSpace(userID) == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			c.Set(userIDKey, userID)
			c.Next()
			return
		}

		headerID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if headerID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		c.Set(userIDKey, headerID)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
