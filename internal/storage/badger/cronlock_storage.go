package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CronLockStorage implements the two-phase cron lock protocol on Badger:
// ensure-exists (idempotent insert) followed by an atomic conditional
// claim inside one serializable transaction.
type CronLockStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCronLockStorage creates a new CronLockStorage instance
func NewCronLockStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CronLockStorage {
	return &CronLockStorage{db: db, logger: logger}
}

func (s *CronLockStorage) EnsureExists(ctx context.Context, taskName string) error {
	if taskName == "" {
		return fmt.Errorf("task name is required")
	}

	err := s.db.Store().Insert(taskName, &models.CronLock{TaskName: taskName})
	if err != nil && err != badgerhold.ErrKeyExists {
		return fmt.Errorf("failed to ensure cron lock row: %w", err)
	}
	return nil
}

// TryAcquire performs the conditional claim. Both conditions must hold:
// the previous lease has expired AND the stored window key differs from
// the current one. Losing the race returns (false, nil), a normal skip.
func (s *CronLockStorage) TryAcquire(ctx context.Context, taskName, windowKey string, now time.Time, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		var lock models.CronLock
		if err := s.db.Store().TxGet(txn, taskName, &lock); err != nil {
			if err == badgerhold.ErrNotFound {
				return fmt.Errorf("cron lock row missing for %s (EnsureExists not called)", taskName)
			}
			return fmt.Errorf("failed to read cron lock: %w", err)
		}

		if !lock.LockedUntil.Before(now) {
			return nil // another instance holds the lease
		}
		if lock.WindowKey == windowKey {
			return nil // already ran in this window
		}

		lock.LockedAt = now
		lock.LockedUntil = now.Add(ttl)
		lock.WindowKey = windowKey
		if err := s.db.Store().TxUpdate(txn, taskName, &lock); err != nil {
			return fmt.Errorf("failed to claim cron lock: %w", err)
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (s *CronLockStorage) Get(ctx context.Context, taskName string) (*models.CronLock, error) {
	var lock models.CronLock
	if err := s.db.Store().Get(taskName, &lock); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("cron lock", taskName)
		}
		return nil, fmt.Errorf("failed to get cron lock: %w", err)
	}
	return &lock, nil
}
