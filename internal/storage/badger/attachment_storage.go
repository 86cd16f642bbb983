package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AttachmentStorage implements the AttachmentStorage interface for Badger
type AttachmentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAttachmentStorage creates a new AttachmentStorage instance
func NewAttachmentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AttachmentStorage {
	return &AttachmentStorage{db: db, logger: logger}
}

func (s *AttachmentStorage) SaveAttachment(ctx context.Context, att *models.Attachment) error {
	if att.ID == "" {
		return fmt.Errorf("attachment ID is required")
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(att.ID, att); err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}
	return nil
}

func (s *AttachmentStorage) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	var att models.Attachment
	if err := s.db.Store().Get(id, &att); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("attachment", id)
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &att, nil
}

func (s *AttachmentStorage) GetAttachmentsByChat(ctx context.Context, chatName string) ([]*models.Attachment, error) {
	var atts []models.Attachment
	if err := s.db.Store().Find(&atts, badgerhold.Where("ChatName").Eq(chatName)); err != nil {
		return nil, fmt.Errorf("failed to find attachments for %s: %w", chatName, err)
	}

	out := make([]*models.Attachment, len(atts))
	for i := range atts {
		out[i] = &atts[i]
	}
	return out, nil
}

// GetExpired returns attachments whose expiry has passed and which have
// not been soft-deleted yet.
func (s *AttachmentStorage) GetExpired(ctx context.Context, now time.Time) ([]*models.Attachment, error) {
	var atts []models.Attachment
	if err := s.db.Store().Find(&atts, badgerhold.Where("ExpiresAt").Lt(now)); err != nil {
		return nil, fmt.Errorf("failed to find expired attachments: %w", err)
	}

	out := make([]*models.Attachment, 0, len(atts))
	for i := range atts {
		if atts[i].DeletedAt != nil || atts[i].ExpiresAt.IsZero() {
			continue
		}
		out = append(out, &atts[i])
	}
	return out, nil
}
