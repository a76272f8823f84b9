package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"huntzen-care/utils"
)

// ErrorHandler reports errors attached by handlers to Sentry and the log
// once the request has been served.
func ErrorHandler(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		for _, ginErr := range c.Errors {
			fields := map[string]interface{}{
				"endpoint": c.FullPath(),
				"method":   c.Request.Method,
				"status":   c.Writer.Status(),
			}
			if actor, ok := Actor(c); ok {
				fields["user_id"] = actor.UserID
				fields["role"] = string(actor.Role)
			}
			utils.CaptureError(ginErr.Err, fields)
			log.Error("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", c.Writer.Status(),
				"error", ginErr.Err,
			)
		}
	}
}
