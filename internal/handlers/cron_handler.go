package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/scheduler"
)

// CronHandler exposes the scheduled passes as GET endpoints so an external
// scheduler (or an operator) can trigger them. Runs still go through the
// cron lock, so a duplicate trigger reports skipped instead of running
// twice.
type CronHandler struct {
	scheduler *scheduler.Scheduler
	logger    arbor.ILogger
}

// NewCronHandler creates a cron handler.
func NewCronHandler(sched *scheduler.Scheduler, logger arbor.ILogger) *CronHandler {
	return &CronHandler{scheduler: sched, logger: logger}
}

// HandleSeed processes GET /api/cron/seed.
func (h *CronHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, scheduler.TaskSeed)
}

// HandleIngest processes GET /api/cron/ingest.
func (h *CronHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, scheduler.TaskIngest)
}

// HandleReference processes GET /api/cron/reference.
func (h *CronHandler) HandleReference(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, scheduler.TaskReference)
}

// HandleCleanup processes GET /api/cron/cleanup.
func (h *CronHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, scheduler.TaskCleanup)
}

// HandleLastRun processes GET /api/cron/last?task=<name>.
func (h *CronHandler) HandleLastRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	task := r.URL.Query().Get("task")
	if task == "" {
		WriteError(w, http.StatusBadRequest, "task query parameter is required")
		return
	}

	record, err := h.scheduler.LastRun(r.Context(), task)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if record == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"task": task, "last_run": nil})
		return
	}

	var parsed any
	if err := json.Unmarshal([]byte(record), &parsed); err != nil {
		parsed = record
	}
	WriteJSON(w, http.StatusOK, map[string]any{"task": task, "last_run": parsed})
}

func (h *CronHandler) run(w http.ResponseWriter, r *http.Request, task string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	skipped, stats, err := h.scheduler.RunLocked(r.Context(), task)
	if err != nil {
		h.logger.Error().Err(err).Str("task", task).Msg("Cron run failed")
		WriteDomainError(w, err)
		return
	}
	if skipped {
		WriteJSON(w, http.StatusOK, map[string]any{
			"task":    task,
			"skipped": true,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"task":    task,
		"skipped": false,
		"stats":   stats,
	})
}
