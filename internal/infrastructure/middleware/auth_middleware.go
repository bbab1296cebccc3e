package middleware

import (
	"strings"

	"codeshare/internal/core/services"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware attaches user identity when a valid token is
// present but never rejects the request. The editor endpoints accept
// anonymous callers the same way the WebSocket entrypoint does.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			token := parts[1]
			if claims, err := authService.ValidateToken(token); err == nil {
				c.Set("user_id", string(claims.UserID))
				c.Set("username", claims.Username)
			}
		}

		c.Next()
	}
}
