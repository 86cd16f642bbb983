package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/finalize"
)

const secretHeader = "X-Webhook-Secret"

// webhookMessage is one inbound turn from the external chat platform.
type webhookMessage struct {
	ID            string `json:"id"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	HasAttachment bool   `json:"hasAttachment"`
	HasLink       bool   `json:"hasLink"`
	IsVoice       bool   `json:"isVoice"`
	Timestamp     string `json:"timestamp"`
}

type webhookAttachment struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	URL       string `json:"url"`
}

type webhookPayload struct {
	ChatName       string              `json:"chatName"`
	Language       string              `json:"language"`
	Messages       []webhookMessage    `json:"messages"`
	Translations   map[string]string   `json:"translations"`
	Attachments    []webhookAttachment `json:"attachments"`
	SendToInternal bool                `json:"sendToInternal"`
	UserEmails     []string            `json:"userEmails"`
	Reason         string              `json:"reason"`
}

// WebhookHandler ingests finished conversations pushed by the external
// chat platform and runs finalization on them.
type WebhookHandler struct {
	config        *common.WebhookConfig
	finalizeCfg   *common.FinalizeConfig
	finalizer     *finalize.Service
	conversations interfaces.ConversationStorage
	messages      interfaces.MessageStorage
	attachments   interfaces.AttachmentStorage
	logs          interfaces.LogStorage
	logger        arbor.ILogger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(cfg *common.WebhookConfig, finalizeCfg *common.FinalizeConfig,
	finalizer *finalize.Service, conversations interfaces.ConversationStorage,
	messages interfaces.MessageStorage, attachments interfaces.AttachmentStorage,
	logs interfaces.LogStorage, logger arbor.ILogger) *WebhookHandler {
	return &WebhookHandler{
		config:        cfg,
		finalizeCfg:   finalizeCfg,
		finalizer:     finalizer,
		conversations: conversations,
		messages:      messages,
		attachments:   attachments,
		logs:          logs,
		logger:        logger,
	}
}

// Handle processes POST /api/webhook/conversation. Every request is
// recorded as a WebhookLog row with its raw payload, whether it succeeds
// or fails.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.authorized(r) {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.writeLog(r.Context(), "", string(body), err)
		WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := h.process(r.Context(), &payload); err != nil {
		h.writeLog(r.Context(), payload.ChatName, string(body), err)
		WriteDomainError(w, err)
		return
	}

	h.writeLog(r.Context(), payload.ChatName, string(body), nil)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"chat_name": payload.ChatName,
	})
}

// authorized performs the exact shared-secret match. An empty configured
// secret disables the check.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.config.Secret == "" {
		return true
	}
	provided := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.config.Secret)) == 1
}

func (h *WebhookHandler) process(ctx context.Context, payload *webhookPayload) error {
	if payload.ChatName == "" {
		return common.NewValidationError("chatName", "cannot be empty")
	}
	if len(payload.Messages) == 0 {
		return common.NewValidationError("messages", "cannot be empty")
	}

	if err := h.persistConversation(ctx, payload); err != nil {
		return err
	}
	if err := h.persistMessages(ctx, payload); err != nil {
		return err
	}
	if err := h.persistAttachments(ctx, payload); err != nil {
		return err
	}

	_, err := h.finalizer.Finalize(ctx, &finalize.Request{
		ChatName:       payload.ChatName,
		Reason:         payload.Reason,
		NotifyInternal: payload.SendToInternal,
	})
	return err
}

func (h *WebhookHandler) persistConversation(ctx context.Context, payload *webhookPayload) error {
	conv, err := h.conversations.GetConversation(ctx, payload.ChatName)
	if err != nil {
		if !common.IsNotFound(err) {
			return err
		}
		conv = &models.Conversation{
			ChatName:  payload.ChatName,
			Status:    models.ConversationActive,
			StartedAt: time.Now(),
		}
	}

	conv.Language = payload.Language
	conv.NotifyInternal = payload.SendToInternal
	conv.MessageCount = len(payload.Messages)
	conv.LastActivityAt = time.Now()
	if len(payload.UserEmails) > 0 {
		conv.UserEmails = payload.UserEmails
	}
	return h.conversations.SaveConversation(ctx, conv)
}

func (h *WebhookHandler) persistMessages(ctx context.Context, payload *webhookPayload) error {
	for i, wm := range payload.Messages {
		if wm.ID == "" {
			return common.NewValidationError("messages", "message id cannot be empty")
		}

		createdAt := time.Now()
		if wm.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339, wm.Timestamp); err == nil {
				createdAt = parsed
			}
		}

		role := models.RoleUser
		if wm.Role == string(models.RoleBot) {
			role = models.RoleBot
		}

		msg := &models.Message{
			ID:            wm.ID,
			ChatName:      payload.ChatName,
			Role:          role,
			Content:       wm.Content,
			Translated:    payload.Translations[wm.ID],
			HasAttachment: wm.HasAttachment,
			HasLink:       wm.HasLink,
			IsVoice:       wm.IsVoice,
			Sequence:      i + 1,
			CreatedAt:     createdAt,
		}
		if err := h.messages.SaveMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *WebhookHandler) persistAttachments(ctx context.Context, payload *webhookPayload) error {
	expiresAt := time.Now().Add(h.finalizeCfg.ArtifactExpiry)
	for _, wa := range payload.Attachments {
		id := wa.ID
		if id == "" {
			id = common.NewAttachmentID()
		}
		att := &models.Attachment{
			ID:          id,
			MessageID:   wa.MessageID,
			ChatName:    payload.ChatName,
			Kind:        models.AttachmentUserUpload,
			FileName:    wa.FileName,
			MimeType:    wa.MimeType,
			SizeBytes:   wa.SizeBytes,
			OriginalURL: wa.URL,
			ExpiresAt:   expiresAt,
			CreatedAt:   time.Now(),
		}
		if err := h.attachments.SaveAttachment(ctx, att); err != nil {
			return err
		}
	}
	return nil
}

func (h *WebhookHandler) writeLog(ctx context.Context, chatName, payload string, processErr error) {
	entry := &models.WebhookLog{
		ID:        common.NewWebhookLogID(),
		ChatName:  chatName,
		Payload:   payload,
		Status:    "ok",
		CreatedAt: time.Now(),
	}
	if processErr != nil {
		entry.Status = "error"
		entry.Error = processErr.Error()
	}
	if err := h.logs.AppendWebhookLog(ctx, entry); err != nil {
		h.logger.Warn().Err(err).Str("chat_name", chatName).Msg("Failed to write webhook log")
	}
}
