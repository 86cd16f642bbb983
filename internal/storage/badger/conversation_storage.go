package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ConversationStorage implements the ConversationStorage interface for Badger
type ConversationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewConversationStorage creates a new ConversationStorage instance
func NewConversationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ConversationStorage {
	return &ConversationStorage{db: db, logger: logger}
}

func (s *ConversationStorage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ChatName == "" {
		return fmt.Errorf("conversation chat name is required")
	}
	if err := s.db.Store().Upsert(conv.ChatName, conv); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func (s *ConversationStorage) GetConversation(ctx context.Context, chatName string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.Store().Get(chatName, &conv); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("conversation", chatName)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *ConversationStorage) ListConversations(ctx context.Context, status models.ConversationStatus, limit int) ([]*models.Conversation, error) {
	var query *badgerhold.Query
	if status != "" {
		query = badgerhold.Where("Status").Eq(status)
	}

	var convs []models.Conversation
	if err := s.db.Store().Find(&convs, query); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastActivityAt.After(convs[j].LastActivityAt)
	})
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}

	out := make([]*models.Conversation, len(convs))
	for i := range convs {
		out[i] = &convs[i]
	}
	return out, nil
}
