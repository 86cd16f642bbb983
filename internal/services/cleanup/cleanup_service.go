package cleanup

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/interfaces"
)

// Stats summarizes one attachment cleanup sweep.
type Stats struct {
	Expired      int `json:"expired"`
	BlobsDeleted int `json:"blobs_deleted"`
	Errors       int `json:"errors"`
}

// Service sweeps expired attachments: stored blobs are deleted, the URL
// fields nulled, and DeletedAt stamped. Attachments with a future expiry
// are untouched; already-deleted ones never reappear in the query.
type Service struct {
	attachments interfaces.AttachmentStorage
	blobs       interfaces.BlobStore
	logger      arbor.ILogger
}

// NewService creates a cleanup service.
func NewService(attachments interfaces.AttachmentStorage, blobs interfaces.BlobStore, logger arbor.ILogger) *Service {
	return &Service{
		attachments: attachments,
		blobs:       blobs,
		logger:      logger,
	}
}

// Sweep processes every expired, undeleted attachment. Per-attachment blob
// failures are logged and counted; the soft delete still proceeds so a
// missing blob cannot wedge an attachment in the expired set forever.
func (s *Service) Sweep(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	start := time.Now()
	now := time.Now()

	expired, err := s.attachments.GetExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	stats.Expired = len(expired)

	for _, att := range expired {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		for _, url := range []string{att.OriginalURL, att.PreviewURL} {
			if url == "" {
				continue
			}
			if err := s.blobs.Delete(ctx, url); err != nil {
				s.logger.Warn().Err(err).Str("attachment_id", att.ID).Str("url", url).Msg("Blob delete failed")
				stats.Errors++
				continue
			}
			stats.BlobsDeleted++
		}

		att.OriginalURL = ""
		att.PreviewURL = ""
		deletedAt := now
		att.DeletedAt = &deletedAt
		if err := s.attachments.SaveAttachment(ctx, att); err != nil {
			s.logger.Warn().Err(err).Str("attachment_id", att.ID).Msg("Failed to soft-delete attachment")
			stats.Errors++
		}
	}

	s.logger.Info().
		Int("expired", stats.Expired).
		Int("blobs_deleted", stats.BlobsDeleted).
		Int("errors", stats.Errors).
		Dur("duration", time.Since(start)).
		Msg("Attachment cleanup completed")

	return stats, nil
}
