package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/services/cleanup"
	"github.com/ternarybob/facet/internal/services/crawler"
	"github.com/ternarybob/facet/internal/services/cronlock"
	"github.com/ternarybob/facet/internal/services/reference"
)

// Task names used for cron locks and last-run records.
const (
	TaskSeed      = "seed"
	TaskIngest    = "ingest"
	TaskReference = "reference"
	TaskCleanup   = "cleanup"
)

const jobTimeout = 30 * time.Minute

// Scheduler wires the periodic passes onto cron schedules. Every run takes
// its task's lock first so overlapping instances skip instead of
// double-processing.
type Scheduler struct {
	config    *common.JobsConfig
	cron      *cron.Cron
	locks     *cronlock.Manager
	seeder    *crawler.Seeder
	ingester  *crawler.Ingester
	reference *reference.Service
	cleanup   *cleanup.Service
	kv        interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewScheduler creates the job scheduler.
func NewScheduler(cfg *common.JobsConfig, locks *cronlock.Manager, seeder *crawler.Seeder,
	ingester *crawler.Ingester, referenceSvc *reference.Service, cleanupSvc *cleanup.Service,
	kv interfaces.KeyValueStorage, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config:    cfg,
		cron:      cron.New(),
		locks:     locks,
		seeder:    seeder,
		ingester:  ingester,
		reference: referenceSvc,
		cleanup:   cleanupSvc,
		kv:        kv,
		logger:    logger,
	}
}

// Start registers every configured job and starts the cron loop. Jobs with
// an empty schedule are not registered.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) (any, error)
	}{
		{TaskSeed, s.config.SeedSchedule, func(ctx context.Context) (any, error) { return s.seeder.Seed(ctx) }},
		{TaskIngest, s.config.IngestSchedule, func(ctx context.Context) (any, error) { return s.ingester.Ingest(ctx) }},
		{TaskReference, s.config.ReferenceSchedule, func(ctx context.Context) (any, error) { return s.reference.Sync(ctx) }},
		{TaskCleanup, s.config.CleanupSchedule, func(ctx context.Context) (any, error) { return s.cleanup.Sweep(ctx) }},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		name, run := job.name, job.run
		if _, err := s.cron.AddFunc(job.schedule, func() {
			s.runLocked(name, run)
		}); err != nil {
			return err
		}
		s.logger.Info().
			Str("task", name).
			Str("schedule", job.schedule).
			Msg("Scheduled job registered")
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop. Running jobs finish on their own deadlines.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunLocked executes one task immediately under its cron lock, returning
// (skipped, stats). Used by both cron ticks and the HTTP cron endpoints.
func (s *Scheduler) RunLocked(ctx context.Context, task string) (bool, any, error) {
	windowKey := cronlock.HourlyWindowKey(time.Now())
	acquired, err := s.locks.Acquire(ctx, task, windowKey, jobTimeout)
	if err != nil {
		return false, nil, err
	}
	if !acquired {
		return true, nil, nil
	}

	var stats any
	switch task {
	case TaskSeed:
		stats, err = s.seeder.Seed(ctx)
	case TaskIngest:
		stats, err = s.ingester.Ingest(ctx)
	case TaskReference:
		stats, err = s.reference.Sync(ctx)
	case TaskCleanup:
		stats, err = s.cleanup.Sweep(ctx)
	default:
		return false, nil, common.NewNotFoundError("task", task)
	}
	if err != nil {
		return false, nil, err
	}

	s.recordLastRun(ctx, task, stats)
	return false, stats, nil
}

func (s *Scheduler) runLocked(task string, run func(context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	windowKey := cronlock.HourlyWindowKey(time.Now())
	acquired, err := s.locks.Acquire(ctx, task, windowKey, jobTimeout)
	if err != nil {
		s.logger.Error().Err(err).Str("task", task).Msg("Cron lock acquisition failed")
		return
	}
	if !acquired {
		return
	}

	stats, err := run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("task", task).Msg("Scheduled job failed")
		return
	}
	s.recordLastRun(ctx, task, stats)
}

// recordLastRun stores the run's stats as JSON so the cron endpoints can
// report the previous run without re-executing it.
func (s *Scheduler) recordLastRun(ctx context.Context, task string, stats any) {
	data, err := json.Marshal(map[string]any{
		"task":   task,
		"ran_at": time.Now().UTC().Format(time.RFC3339),
		"stats":  stats,
	})
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, "last_run_"+task, string(data), "Last completed run of "+task); err != nil {
		s.logger.Warn().Err(err).Str("task", task).Msg("Failed to record last run")
	}
}

// LastRun returns the stored record of the task's last completed run, or
// empty when it has never run.
func (s *Scheduler) LastRun(ctx context.Context, task string) (string, error) {
	value, err := s.kv.Get(ctx, "last_run_"+task)
	if err != nil {
		if common.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}
