package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campuschat/internal/commands"
	"campuschat/internal/services"
	"campuschat/internal/transport/httpdto"
)

// MessageHandler exposes message history and a REST send path for
// clients that are mid-reconnect and cannot use the realtime RPC.
type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "invalid request")
		return
	}

	payload, err := h.service.Send(c.Request.Context(), commands.SendMessageCommand{
		ConversationID:   conversationID,
		SenderID:         userID,
		Content:          req.Content,
		Attachments:      req.Attachments,
		ReplyToMessageID: req.ReplyToMessageID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(payload))
}

// History pages backwards: ?before_seq=N&limit=M. before_seq of 0 means
// "from the newest".
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	beforeSeq, _ := strconv.ParseInt(c.Query("before_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.service.History(c.Request.Context(), conversationID, userID, beforeSeq, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msgs))
}

// Resync returns everything after the caller's last seen sequence:
// ?after_seq=N&limit=M.
func (h *MessageHandler) Resync(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.service.Resync(c.Request.Context(), conversationID, userID, afterSeq, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msgs))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "messageId")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "invalid request")
		return
	}

	payload, err := h.service.Edit(c.Request.Context(), commands.EditMessageCommand{
		MessageID: messageID,
		EditorID:  userID,
		Content:   req.Content,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(payload))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "messageId")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), commands.DeleteMessageCommand{
		MessageID: messageID,
		UserID:    userID,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}
