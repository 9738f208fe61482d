package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
)

const (
	contextUserIDKey = "auth_user_id"
	contextRoleKey   = "auth_role"
)

// RequireAuth validates the bearer access token and attaches the resolved
// user id/role to the Gin context for downstream handlers.
func RequireAuth(manager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apperr.Abort(c, apperr.Unauthorized("missing bearer token"))
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")
		claims, err := manager.ValidateAccessToken(tokenString)
		if err != nil {
			apperr.Abort(c, apperr.Unauthorized("invalid or expired token"))
			return
		}
		c.Set(contextUserIDKey, claims.UserID)
		c.Set(contextRoleKey, claims.Role)
		c.Next()
	}
}

// UserID returns the authenticated caller's id, set by RequireAuth.
func UserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
