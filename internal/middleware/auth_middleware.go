package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campuschat/internal/services"
	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

const userIDContextKey = "auth.user_id"

func AuthMiddleware(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		userID, err := service.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", chat_errors.Code(chat_errors.ErrUnauthorized)))
			c.Abort()
			return
		}

		c.Set(userIDContextKey, userID)
		ctx := context.WithValue(c.Request.Context(), logger.UserIdKey, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserID returns the authenticated user set by AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDContextKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
