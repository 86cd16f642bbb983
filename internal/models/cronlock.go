package models

import "time"

// CronLock is the per-task row backing distributed mutual exclusion for
// scheduled jobs. A lock is acquirable only when LockedUntil has passed
// AND WindowKey differs from the current run's window key, which blocks
// same-window re-runs even after the TTL expires.
type CronLock struct {
	TaskName    string    `json:"task_name" badgerhold:"key"`
	LockedAt    time.Time `json:"locked_at"`
	LockedUntil time.Time `json:"locked_until"`
	WindowKey   string    `json:"window_key"` // e.g. a UTC date string for daily jobs
}
