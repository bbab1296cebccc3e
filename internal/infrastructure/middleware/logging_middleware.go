package middleware

import (
	"time"

	"codeshare/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLoggingMiddleware logs every completed HTTP request. WebSocket
// upgrades are skipped: their lifetime is the connection, not the request.
func RequestLoggingMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		cl.LogRequest(c, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Milliseconds())
	}
}
