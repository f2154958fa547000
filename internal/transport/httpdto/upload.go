package httpdto

// UploadResult is the contract of the attachment-upload collaborator:
// whatever stores the bytes must hand back these four fields.
type UploadResult struct {
	FileURL       string `json:"file_url"`
	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	MimeType      string `json:"mime_type"`
}
