package interfaces

import (
	"context"
)

// BlobStore is the put/get/delete key-value contract over durable object
// storage. Put returns a stable URL for the stored object.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// DriveUpload is the result of storing a document in the Drive-like
// collaborator.
type DriveUpload struct {
	FileID      string
	WebViewLink string
}

// DriveStore uploads rendered documents to external document storage.
type DriveStore interface {
	Upload(ctx context.Context, fileName string, data []byte, mimeType string) (*DriveUpload, error)
}

// Mailer sends one HTML email and returns the provider message id.
// chatName ties the delivery log row back to its conversation and may be
// empty for system mail.
type Mailer interface {
	Send(ctx context.Context, chatName, to, subject, html string) (string, error)
}

// PDFRenderer converts HTML to PDF bytes using print-style page size and
// margins.
type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}
