package middleware

import (
	"github.com/gin-gonic/gin"

	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// ErrorHandler converts errors attached to the gin context into the
// shared response shape. Handlers that already wrote a body are passed
// through untouched.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Errorf("request error: %s", err.Error())
		}
		c.JSON(chat_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), chat_errors.Code(err)))
	}
}
