package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
)

// MaxUploadBytes bounds a single attachment body.
const MaxUploadBytes = 25 << 20

// Uploader is the blob-store collaborator behind attachment uploads.
type Uploader interface {
	Put(ctx context.Context, fileName, contentType string, size int64, body io.Reader) (key string, url string, err error)
}

type UploadService struct {
	store Uploader
}

func NewUploadService(store Uploader) *UploadService {
	return &UploadService{store: store}
}

func (s *UploadService) Upload(ctx context.Context, fileName, contentType string, size int64, body io.Reader) (httpdto.UploadResult, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return httpdto.UploadResult{}, fmt.Errorf("%w: file name is required", chat_errors.ErrInvalidInput)
	}
	if size <= 0 {
		return httpdto.UploadResult{}, fmt.Errorf("%w: file size must be positive", chat_errors.ErrInvalidInput)
	}
	if size > MaxUploadBytes {
		return httpdto.UploadResult{}, fmt.Errorf("%w: file exceeds %d bytes", chat_errors.ErrInvalidInput, MaxUploadBytes)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, url, err := s.store.Put(ctx, fileName, contentType, size, io.LimitReader(body, MaxUploadBytes))
	if err != nil {
		return httpdto.UploadResult{}, fmt.Errorf("%w: storing attachment: %v", chat_errors.ErrServiceUnavailable, err)
	}

	return httpdto.UploadResult{
		FileURL:       url,
		FileName:      fileName,
		FileSizeBytes: size,
		MimeType:      contentType,
	}, nil
}
