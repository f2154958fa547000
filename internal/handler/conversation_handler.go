package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campuschat/internal/services"
	"campuschat/internal/transport/httpdto"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) CreateDirect(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateDirectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "invalid request")
		return
	}

	conv, err := h.service.CreateDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateGroupConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "invalid request")
		return
	}

	conv, err := h.service.CreateGroup(c.Request.Context(), req.Title, userID, req.ParticipantIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.service.GetByID(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	convs, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(convs))
}

func (h *ConversationHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

func (h *ConversationHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ConversationHandler) setArchived(c *gin.Context, archived bool) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.service.SetArchived(c.Request.Context(), conversationID, userID, archived)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "invalid request")
		return
	}

	conv, err := h.service.AddParticipant(c.Request.Context(), conversationID, userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	memberID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	conv, err := h.service.RemoveParticipant(c.Request.Context(), conversationID, userID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}
