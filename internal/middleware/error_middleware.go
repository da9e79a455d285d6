package middleware

import (
	"github.com/s1d40/empathy-hub-backend/internal/transport/httpdto"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors attached with c.Error when the handler did not
// write a response itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := hub_errors.HTTPStatus(err)
		if l != nil && status >= 500 {
			l.WithContext(c.Request.Context()).Logger.Error("request error",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
		if c.Writer.Written() {
			return
		}
		message := err.Error()
		if status >= 500 {
			message = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(message, hub_errors.Code(err)))
	}
}
