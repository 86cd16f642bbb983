package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Conversation intake and chat
	mux.HandleFunc("/api/webhook/conversation", s.app.WebhookHandler.Handle)
	mux.HandleFunc("/api/chat", s.app.ChatHandler.Handle)

	// Conversation management
	mux.HandleFunc("/api/conversations", s.app.ConversationHandler.HandleList)
	mux.HandleFunc("/api/conversations/", s.handleConversationRoutes)

	// Scheduled passes, triggerable over HTTP with the same lock
	// semantics as the cron ticks
	mux.HandleFunc("/api/cron/seed", s.app.CronHandler.HandleSeed)
	mux.HandleFunc("/api/cron/ingest", s.app.CronHandler.HandleIngest)
	mux.HandleFunc("/api/cron/reference", s.app.CronHandler.HandleReference)
	mux.HandleFunc("/api/cron/cleanup", s.app.CronHandler.HandleCleanup)
	mux.HandleFunc("/api/cron/last", s.app.CronHandler.HandleLastRun)

	// System
	mux.HandleFunc("/api/health", s.healthHandler)
	mux.HandleFunc("/api/version", s.versionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

// handleConversationRoutes routes /api/conversations/{chatName} and
// /api/conversations/finalize.
func (s *Server) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.TrimPrefix(r.URL.Path, "/api/conversations/")

	if suffix == "finalize" {
		s.app.ConversationHandler.HandleFinalize(w, r)
		return
	}
	if suffix == "" {
		s.app.ConversationHandler.HandleList(w, r)
		return
	}

	s.app.ConversationHandler.HandleGet(w, r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"version": common.GetFullVersion(),
	})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusNotFound, "not found")
}
