package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campuschat/internal/middleware"
	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
)

func respondError(c *gin.Context, err error) {
	c.JSON(chat_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), chat_errors.Code(err)))
}

func respondInvalid(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, chat_errors.Code(chat_errors.ErrInvalidInput)))
}

// requireUser aborts with 401 unless AuthMiddleware saw a valid token.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", chat_errors.Code(chat_errors.ErrUnauthorized)))
		return uuid.Nil, false
	}
	return userID, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondInvalid(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
