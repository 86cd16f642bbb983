package cronlock

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/interfaces"
)

// Manager coordinates scheduled jobs across instances with the two-phase
// lock protocol: ensure the per-task row exists, then attempt one atomic
// conditional claim. Losing the claim is a normal skip, not an error.
type Manager struct {
	storage interfaces.CronLockStorage
	logger  arbor.ILogger
}

// NewManager creates a cron lock manager.
func NewManager(storage interfaces.CronLockStorage, logger arbor.ILogger) *Manager {
	return &Manager{
		storage: storage,
		logger:  logger,
	}
}

// Acquire attempts to take the named lock for the given window. It returns
// true when this caller owns the run; false means another instance owns it
// or the task already ran in this window.
func (m *Manager) Acquire(ctx context.Context, taskName, windowKey string, ttl time.Duration) (bool, error) {
	if err := m.storage.EnsureExists(ctx, taskName); err != nil {
		return false, err
	}

	acquired, err := m.storage.TryAcquire(ctx, taskName, windowKey, time.Now(), ttl)
	if err != nil {
		return false, err
	}

	if acquired {
		m.logger.Debug().
			Str("task", taskName).
			Str("window", windowKey).
			Dur("ttl", ttl).
			Msg("Acquired cron lock")
	} else {
		m.logger.Debug().
			Str("task", taskName).
			Str("window", windowKey).
			Msg("Cron lock not acquired, skipping run")
	}
	return acquired, nil
}

// DailyWindowKey returns the UTC date string used as the window key for
// once-per-day jobs.
func DailyWindowKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// HourlyWindowKey returns the UTC hour string used as the window key for
// once-per-hour jobs.
func HourlyWindowKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}
