package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campuschat/internal/commands"
	"campuschat/internal/services"
	"campuschat/internal/transport/httpdto"
)

type ChannelHandler struct {
	service *services.ChannelService
}

func NewChannelHandler(service *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{service: service}
}

func (h *ChannelHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "invalid request")
		return
	}

	ch, err := h.service.Create(c.Request.Context(), commands.CreateChannelCommand{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		OwnerID:     userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(ch))
}

func (h *ChannelHandler) ListPublic(c *gin.Context) {
	chs, err := h.service.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(chs))
}

func (h *ChannelHandler) ListMine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chs, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(chs))
}

func (h *ChannelHandler) Join(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	channelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// Joining yourself to a public channel needs no sponsor; adding
	// someone else requires moderator rights, checked by the service.
	var req struct {
		UserID *uuid.UUID `json:"user_id"`
	}
	_ = c.ShouldBindJSON(&req)

	cmd := commands.JoinChannelCommand{ChannelID: channelID, UserID: userID}
	if req.UserID != nil && *req.UserID != userID {
		cmd.UserID = *req.UserID
		cmd.AddedBy = &userID
	}

	ch, err := h.service.Join(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(ch))
}

func (h *ChannelHandler) Leave(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	channelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ch, err := h.service.Leave(c.Request.Context(), commands.LeaveChannelCommand{
		ChannelID: channelID,
		UserID:    userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(ch))
}

func (h *ChannelHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

func (h *ChannelHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ChannelHandler) setArchived(c *gin.Context, archive bool) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	channelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ch, err := h.service.SetArchived(c.Request.Context(), commands.ArchiveChannelCommand{
		ChannelID: channelID,
		ActorID:   userID,
		Archive:   archive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(ch))
}
