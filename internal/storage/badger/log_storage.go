package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LogStorage implements the LogStorage interface for Badger. Rows are
// append-only; nothing in the codebase updates or deletes them.
type LogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLogStorage creates a new LogStorage instance
func NewLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LogStorage {
	return &LogStorage{db: db, logger: logger}
}

func (s *LogStorage) AppendEmailLog(ctx context.Context, entry *models.EmailLog) error {
	if entry.ID == "" {
		entry.ID = "elog_" + uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to append email log: %w", err)
	}
	return nil
}

func (s *LogStorage) GetEmailLogs(ctx context.Context, chatName string) ([]*models.EmailLog, error) {
	var logs []models.EmailLog
	if err := s.db.Store().Find(&logs, badgerhold.Where("ChatName").Eq(chatName)); err != nil {
		return nil, fmt.Errorf("failed to get email logs: %w", err)
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.Before(logs[j].CreatedAt) })

	out := make([]*models.EmailLog, len(logs))
	for i := range logs {
		out[i] = &logs[i]
	}
	return out, nil
}

func (s *LogStorage) AppendWebhookLog(ctx context.Context, entry *models.WebhookLog) error {
	if entry.ID == "" {
		entry.ID = "wlog_" + uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to append webhook log: %w", err)
	}
	return nil
}

func (s *LogStorage) GetWebhookLogs(ctx context.Context, chatName string) ([]*models.WebhookLog, error) {
	var logs []models.WebhookLog
	if err := s.db.Store().Find(&logs, badgerhold.Where("ChatName").Eq(chatName)); err != nil {
		return nil, fmt.Errorf("failed to get webhook logs: %w", err)
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.Before(logs[j].CreatedAt) })

	out := make([]*models.WebhookLog, len(logs))
	for i := range logs {
		out[i] = &logs[i]
	}
	return out, nil
}
