package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/services/chat"
)

// ChatHandler exposes the streaming chat turn endpoint.
type ChatHandler struct {
	chat   *chat.Service
	logger arbor.ILogger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chatService *chat.Service, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{chat: chatService, logger: logger}
}

// Handle processes POST /api/chat. The response is a server-sent event
// stream: one meta event, delta events as text arrives, then exactly one
// final or error event.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.chat.Turn(r.Context(), &req)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
		flusher.Flush()
	}
}
