package middleware

import (
	"github.com/gin-gonic/gin"

	"knowledgebase-platform/utils"
)

const userIDKey = "user_id"

// RequireUserID extracts the caller identity set by the upstream gateway.
// Requests without it are rejected before touching any handler.
func RequireUserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			utils.RespondWithUnauthorized(c, "X-User-ID header required")
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the caller identity for the current request.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
