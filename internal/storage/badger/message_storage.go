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

// MessageStorage implements the MessageStorage interface for Badger
type MessageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMessageStorage creates a new MessageStorage instance
func NewMessageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MessageStorage {
	return &MessageStorage{db: db, logger: logger}
}

func (s *MessageStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if msg.ChatName == "" {
		return fmt.Errorf("message chat name is required")
	}
	if err := s.db.Store().Upsert(msg.ID, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *MessageStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.db.Store().Get(id, &msg); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("message", id)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStorage) GetMessages(ctx context.Context, chatName string) ([]*models.Message, error) {
	msgs, err := s.findByChat(chatName)
	if err != nil {
		return nil, err
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Sequence < msgs[j].Sequence })

	out := make([]*models.Message, len(msgs))
	for i := range msgs {
		out[i] = &msgs[i]
	}
	return out, nil
}

// GetRecentMessages returns the most recent limit messages in
// chronological order.
func (s *MessageStorage) GetRecentMessages(ctx context.Context, chatName string, limit int) ([]*models.Message, error) {
	all, err := s.GetMessages(ctx, chatName)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *MessageStorage) MaxSequence(ctx context.Context, chatName string) (int, error) {
	msgs, err := s.findByChat(chatName)
	if err != nil {
		return 0, err
	}

	max := 0
	for i := range msgs {
		if msgs[i].Sequence > max {
			max = msgs[i].Sequence
		}
	}
	return max, nil
}

func (s *MessageStorage) CountMessages(ctx context.Context, chatName string) (int, error) {
	count, err := s.db.Store().Count(&models.Message{}, badgerhold.Where("ChatName").Eq(chatName))
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}

func (s *MessageStorage) findByChat(chatName string) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.db.Store().Find(&msgs, badgerhold.Where("ChatName").Eq(chatName)); err != nil {
		return nil, fmt.Errorf("failed to find messages for %s: %w", chatName, err)
	}
	return msgs, nil
}
