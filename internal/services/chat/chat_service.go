package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/llm"
	"github.com/ternarybob/facet/internal/services/retrieval"
	"github.com/ternarybob/facet/internal/services/summary"
)

const systemPrompt = `You are the assistant for a custom surface design business. Answer customer questions about products, materials, pricing, and orders using the provided context. Be concise and friendly. If the context does not cover a question, say so rather than guessing.`

// EventType tags one streamed chat event.
type EventType string

const (
	EventMeta  EventType = "meta"  // Sent first, carries the resolved chat name
	EventDelta EventType = "delta" // Incremental response text
	EventFinal EventType = "final" // Full response after the stream ends
	EventError EventType = "error"
)

// Event is one tagged item on a chat turn stream.
type Event struct {
	Type      EventType `json:"type"`
	ChatName  string    `json:"chat_name,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// TurnRequest is one inbound user turn. ChatName may be empty, in which
// case the service generates one and reports it in the meta event.
type TurnRequest struct {
	ChatName           string              `json:"chat_name"`
	Content            string              `json:"content" validate:"required"`
	Language           string              `json:"language"`
	Email              string              `json:"email"`
	Attachments        []TurnAttachment    `json:"attachments"`
	ExtractedDocuments []ExtractedDocument `json:"extractedDocuments"`
}

// TurnAttachment is a file the user uploaded with the turn. URL points at
// wherever the caller staged the upload.
type TurnAttachment struct {
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	URL       string `json:"url"`
}

// ExtractedDocument carries text the caller already extracted from an
// upload, fed to the model as extra context for this conversation.
type ExtractedDocument struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Service runs conversational turns: persistence, retrieval context,
// prompt assembly, and streamed generation.
type Service struct {
	config        *common.ChatConfig
	llm           interfaces.LLMService
	retriever     *retrieval.Service
	summarizer    *summary.Service
	conversations interfaces.ConversationStorage
	messages      interfaces.MessageStorage
	attachments   interfaces.AttachmentStorage
	logger        arbor.ILogger
}

// NewService creates a chat turn service.
func NewService(cfg *common.ChatConfig, llm interfaces.LLMService, retriever *retrieval.Service,
	summarizer *summary.Service, conversations interfaces.ConversationStorage,
	messages interfaces.MessageStorage, attachments interfaces.AttachmentStorage,
	logger arbor.ILogger) *Service {
	return &Service{
		config:        cfg,
		llm:           llm,
		retriever:     retriever,
		summarizer:    summarizer,
		conversations: conversations,
		messages:      messages,
		attachments:   attachments,
		logger:        logger,
	}
}

// Turn processes one user turn and streams tagged events on the returned
// channel: one meta event, zero or more deltas, then exactly one final or
// error event. The channel closes when the turn is done.
func (s *Service) Turn(ctx context.Context, req *TurnRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &common.ValidationError{Field: "content", Reason: "cannot be empty"}
	}

	conv, err := s.getOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}
	if conv.Status == models.ConversationClosed {
		return nil, &common.ValidationError{Field: "chat_name", Reason: "conversation is closed"}
	}

	userMsg, err := s.appendMessage(ctx, conv, models.RoleUser, req.Content, len(req.Attachments) > 0)
	if err != nil {
		return nil, err
	}
	if err := s.saveAttachments(ctx, conv.ChatName, userMsg.ID, req.Attachments); err != nil {
		return nil, err
	}

	events := make(chan Event, 16)
	go s.run(ctx, conv, userMsg, req.ExtractedDocuments, events)
	return events, nil
}

func (s *Service) run(ctx context.Context, conv *models.Conversation, userMsg *models.Message,
	docs []ExtractedDocument, events chan<- Event) {
	defer close(events)

	events <- Event{Type: EventMeta, ChatName: conv.ChatName, MessageID: userMsg.ID}

	prompt, err := s.buildPrompt(ctx, conv, userMsg.Content, docs)
	if err != nil {
		events <- Event{Type: EventError, ChatName: conv.ChatName, Error: err.Error()}
		return
	}

	// Route the turn to a model tier before generation: pricing and
	// complaint language, long inputs, and long conversations get the
	// quality model.
	tier := llm.RouteModel(userMsg.Content, llm.RouteContext{MessageCount: conv.MessageCount})

	start := time.Now()
	full, err := s.llm.ChatStream(llm.WithTier(ctx, tier), prompt, func(delta string) {
		events <- Event{Type: EventDelta, Content: delta}
	})
	if err != nil {
		s.logger.Error().Err(err).Str("chat_name", conv.ChatName).Msg("Chat turn generation failed")
		events <- Event{Type: EventError, ChatName: conv.ChatName, Error: "generation failed"}
		return
	}

	botMsg, err := s.appendMessage(ctx, conv, models.RoleBot, full, false)
	if err != nil {
		s.logger.Error().Err(err).Str("chat_name", conv.ChatName).Msg("Failed to persist assistant turn")
		events <- Event{Type: EventError, ChatName: conv.ChatName, Error: "persistence failed"}
		return
	}

	// The summary refresh is best-effort; a failure never fails the turn.
	if _, err := s.summarizer.UpdateIfNeeded(ctx, conv.ChatName); err != nil {
		s.logger.Warn().Err(err).Str("chat_name", conv.ChatName).Msg("Summary update failed")
	}

	s.logger.Info().
		Str("chat_name", conv.ChatName).
		Str("model_tier", string(tier)).
		Int("response_length", len(full)).
		Dur("duration", time.Since(start)).
		Msg("Chat turn completed")

	events <- Event{Type: EventFinal, ChatName: conv.ChatName, MessageID: botMsg.ID, Content: full}
}

// buildPrompt assembles the system prompt, retrieval context from both
// corpora, documents extracted from this turn's uploads, the rolling
// summary, and the recent history window. Retrieval failures degrade to an
// uncontextualized prompt.
func (s *Service) buildPrompt(ctx context.Context, conv *models.Conversation, userText string,
	docs []ExtractedDocument) ([]interfaces.Message, error) {
	var system strings.Builder
	system.WriteString(systemPrompt)

	refResults, err := s.retriever.Retrieve(ctx, userText, retrieval.CorpusReference)
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_name", conv.ChatName).Msg("Reference retrieval failed")
	}
	webResults, err := s.retriever.Retrieve(ctx, userText, retrieval.CorpusWeb)
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_name", conv.ChatName).Msg("Web retrieval failed")
	}

	if block := retrieval.FormatContext("Reference knowledge", refResults); block != "" {
		system.WriteString("\n\n")
		system.WriteString(block)
	}
	if block := retrieval.FormatContext("Web knowledge", webResults); block != "" {
		system.WriteString("\n\n")
		system.WriteString(block)
	}
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		system.WriteString("\n\n[uploaded document: ")
		system.WriteString(doc.Name)
		system.WriteString("]\n")
		system.WriteString(strings.TrimSpace(doc.Content))
	}
	if conv.Meta.Summary != "" {
		system.WriteString("\n\nConversation so far: ")
		system.WriteString(conv.Meta.Summary)
	}

	prompt := []interfaces.Message{{Role: "system", Content: system.String()}}

	window := s.config.HistoryWindow
	if window <= 0 {
		window = 20
	}
	history, err := s.messages.GetRecentMessages(ctx, conv.ChatName, window)
	if err != nil {
		return nil, err
	}
	for _, msg := range history {
		role := "user"
		if msg.Role == models.RoleBot {
			role = "assistant"
		}
		prompt = append(prompt, interfaces.Message{Role: role, Content: msg.Content})
	}

	return prompt, nil
}

// getOrCreate loads the conversation, creating it with a generated name
// when the request carries none or names an unknown conversation.
func (s *Service) getOrCreate(ctx context.Context, req *TurnRequest) (*models.Conversation, error) {
	if req.ChatName != "" {
		conv, err := s.conversations.GetConversation(ctx, req.ChatName)
		if err == nil {
			return conv, nil
		}
		if !common.IsNotFound(err) {
			return nil, err
		}
	}

	chatName := req.ChatName
	if chatName == "" {
		chatName = common.NewChatName(s.config.NamePrefix)
	}

	now := time.Now()
	conv := &models.Conversation{
		ChatName:       chatName,
		Status:         models.ConversationActive,
		Language:       req.Language,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if req.Email != "" {
		conv.UserEmails = []string{req.Email}
	}
	if err := s.conversations.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info().Str("chat_name", chatName).Msg("Created conversation")
	return conv, nil
}

// saveAttachments records this turn's uploads against the user message.
// A bare URL with no file name is treated as an external link rather than
// an upload.
func (s *Service) saveAttachments(ctx context.Context, chatName, messageID string, atts []TurnAttachment) error {
	if len(atts) == 0 {
		return nil
	}
	expiresAt := time.Now().Add(s.config.UploadExpiry)
	for _, ta := range atts {
		att := &models.Attachment{
			ID:        common.NewAttachmentID(),
			MessageID: messageID,
			ChatName:  chatName,
			Kind:      models.AttachmentUserUpload,
			FileName:  ta.FileName,
			MimeType:  ta.MimeType,
			SizeBytes: ta.SizeBytes,
			ExpiresAt: expiresAt,
			CreatedAt: time.Now(),
		}
		if ta.FileName == "" && ta.URL != "" {
			att.Kind = models.AttachmentExternalURL
			att.ExternalURL = ta.URL
		} else {
			att.OriginalURL = ta.URL
		}
		if err := s.attachments.SaveAttachment(ctx, att); err != nil {
			return fmt.Errorf("failed to save attachment: %w", err)
		}
	}
	return nil
}

// appendMessage persists a turn with the next sequence number and bumps the
// conversation's counters.
func (s *Service) appendMessage(ctx context.Context, conv *models.Conversation, role models.MessageRole,
	content string, hasAttachment bool) (*models.Message, error) {
	maxSeq, err := s.messages.MaxSequence(ctx, conv.ChatName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &models.Message{
		ID:            common.NewMessageID(),
		ChatName:      conv.ChatName,
		Role:          role,
		Content:       content,
		HasAttachment: hasAttachment,
		HasLink:       strings.Contains(content, "http://") || strings.Contains(content, "https://"),
		Sequence:      maxSeq + 1,
		CreatedAt:     now,
	}
	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	conv.MessageCount++
	conv.LastActivityAt = now
	if err := s.conversations.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	return msg, nil
}
