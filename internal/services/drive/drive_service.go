package drive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Service implements DriveStore over the Google Drive API with a
// service-account credential. Uploads land in the configured folder.
type Service struct {
	config *common.DriveConfig
	svc    *drive.Service
	logger arbor.ILogger
}

// NewService creates a Drive storage service.
func NewService(ctx context.Context, cfg *common.DriveConfig, logger arbor.ILogger) (*Service, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("drive credentials file is required")
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive credentials: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse drive credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	logger.Debug().Str("folder_id", cfg.FolderID).Msg("Drive storage initialized")

	return &Service{
		config: cfg,
		svc:    svc,
		logger: logger,
	}, nil
}

// Upload stores a document in the configured folder and returns its file
// id and web view link.
func (s *Service) Upload(ctx context.Context, fileName string, data []byte, mimeType string) (*interfaces.DriveUpload, error) {
	meta := &drive.File{
		Name:     fileName,
		MimeType: mimeType,
	}
	if s.config.FolderID != "" {
		meta.Parents = []string{s.config.FolderID}
	}

	start := time.Now()
	created, err := s.svc.Files.Create(meta).
		Context(ctx).
		Media(bytes.NewReader(data)).
		Fields("id", "webViewLink").
		Do()
	if err != nil {
		return nil, &common.UpstreamError{Service: "drive", Err: fmt.Errorf("upload %s failed: %w", fileName, err)}
	}

	s.logger.Debug().
		Str("file_name", fileName).
		Str("file_id", created.Id).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Uploaded file to Drive")

	return &interfaces.DriveUpload{
		FileID:      created.Id,
		WebViewLink: created.WebViewLink,
	}, nil
}
