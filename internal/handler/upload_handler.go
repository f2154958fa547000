package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campuschat/internal/services"
	"campuschat/internal/transport/httpdto"
)

// UploadHandler accepts a multipart attachment and hands back the
// descriptor the client then embeds in a SendMessage call.
type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

func (h *UploadHandler) Upload(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondInvalid(c, "multipart field 'file' is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondInvalid(c, "unreadable upload")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	result, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(result))
}
