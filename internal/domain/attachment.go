package domain

import "strings"

// Attachment is the stored form of an uploaded file, as returned by the
// upload collaborator. Attachments live inside the message row (jsonb).
type Attachment struct {
	FileName      string  `json:"file_name"`
	FileURL       string  `json:"file_url"`
	FileSizeBytes int64   `json:"file_size_bytes"`
	MimeType      string  `json:"mime_type"`
	ThumbnailURL  *string `json:"thumbnail_url,omitempty"`
}

// InferMessageType derives the message type from the first attachment's
// MIME prefix. No attachments means a plain text message.
func InferMessageType(attachments []Attachment) MessageType {
	if len(attachments) == 0 {
		return MessageTypeText
	}
	mime := attachments[0].MimeType
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MessageTypeImage
	case strings.HasPrefix(mime, "video/"):
		return MessageTypeVideo
	default:
		return MessageTypeFile
	}
}
