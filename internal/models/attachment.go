package models

import "time"

// AttachmentKind classifies where an attachment came from.
type AttachmentKind string

const (
	AttachmentUserUpload   AttachmentKind = "user_upload"
	AttachmentBotGenerated AttachmentKind = "bot_generated"
	AttachmentExternalURL  AttachmentKind = "external_url"
)

// Attachment is a file associated with a message. Expired undeleted
// attachments are candidates for the cleanup sweep, which deletes the
// stored blobs, nulls the URLs and stamps DeletedAt.
type Attachment struct {
	ID        string         `json:"id" badgerhold:"key"`
	MessageID string         `json:"message_id" badgerhold:"index"`
	ChatName  string         `json:"chat_name" badgerhold:"index"`
	Kind      AttachmentKind `json:"kind"`

	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	PageCount int    `json:"page_count,omitempty"`

	// Storage locations
	OriginalURL string `json:"original_url,omitempty"` // Blob URL of the original bytes
	PreviewURL  string `json:"preview_url,omitempty"`  // Blob URL of the size-capped derivative
	ExternalURL string `json:"external_url,omitempty"`

	ExpiresAt time.Time  `json:"expires_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsImage reports whether the attachment renders inline in transcripts.
func (a *Attachment) IsImage() bool {
	switch a.MimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
