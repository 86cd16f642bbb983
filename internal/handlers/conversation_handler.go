package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/finalize"
)

// ConversationHandler exposes read access to conversations and the manual
// finalize trigger.
type ConversationHandler struct {
	conversations interfaces.ConversationStorage
	messages      interfaces.MessageStorage
	finalizer     *finalize.Service
	logger        arbor.ILogger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(conversations interfaces.ConversationStorage,
	messages interfaces.MessageStorage, finalizer *finalize.Service, logger arbor.ILogger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		finalizer:     finalizer,
		logger:        logger,
	}
}

// HandleGet processes GET /api/conversations/{chatName}.
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	chatName := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	if chatName == "" {
		WriteError(w, http.StatusBadRequest, "chat name is required")
		return
	}

	conv, err := h.conversations.GetConversation(r.Context(), chatName)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	msgs, err := h.messages.GetMessages(r.Context(), chatName)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     msgs,
	})
}

// HandleList processes GET /api/conversations?status=active&limit=50.
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := models.ConversationStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.ConversationActive
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	convs, err := h.conversations.ListConversations(r.Context(), status, limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// HandleFinalize processes POST /api/conversations/finalize.
func (h *ConversationHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req finalize.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.ChatName == "" {
		WriteError(w, http.StatusBadRequest, "chat_name is required")
		return
	}

	result, err := h.finalizer.Finalize(r.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Str("chat_name", req.ChatName).Msg("Finalize failed")
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
