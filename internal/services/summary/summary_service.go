package summary

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
)

const summaryPrompt = `You maintain a running summary of a customer conversation for a surface design business. Update the summary with the new messages. Keep customer intent, product interests, dimensions, budget, and any commitments made. Write plain prose, no headings.`

// Service maintains the rolling session summary stored in conversation
// meta. Summaries refresh every N messages so prompt context stays bounded
// as conversations grow.
type Service struct {
	config        *common.ChatConfig
	llm           interfaces.LLMService
	conversations interfaces.ConversationStorage
	messages      interfaces.MessageStorage
	logger        arbor.ILogger
}

// NewService creates a summary service.
func NewService(cfg *common.ChatConfig, llm interfaces.LLMService,
	conversations interfaces.ConversationStorage, messages interfaces.MessageStorage,
	logger arbor.ILogger) *Service {
	return &Service{
		config:        cfg,
		llm:           llm,
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

// UpdateIfNeeded refreshes the conversation summary when the message count
// is an exact multiple of the configured interval. Returns true when a
// summary was generated.
func (s *Service) UpdateIfNeeded(ctx context.Context, chatName string) (bool, error) {
	everyN := s.config.SummaryEveryN
	if everyN <= 0 {
		return false, nil
	}

	conv, err := s.conversations.GetConversation(ctx, chatName)
	if err != nil {
		return false, err
	}
	if conv.MessageCount == 0 || conv.MessageCount%everyN != 0 {
		return false, nil
	}

	recent, err := s.messages.GetRecentMessages(ctx, chatName, everyN)
	if err != nil {
		return false, err
	}
	if len(recent) == 0 {
		return false, nil
	}

	start := time.Now()
	text, err := s.generate(ctx, conv.Meta.Summary, recent)
	if err != nil {
		return false, fmt.Errorf("summary generation failed: %w", err)
	}

	if max := s.config.SummaryMaxChars; max > 0 && len(text) > max {
		text = truncateOnRune(text, max)
	}

	conv.Meta = conv.Meta.Merge(models.ConversationMeta{Summary: text})
	if err := s.conversations.SaveConversation(ctx, conv); err != nil {
		return false, err
	}

	s.logger.Debug().
		Str("chat_name", chatName).
		Int("message_count", conv.MessageCount).
		Int("summary_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Updated conversation summary")

	return true, nil
}

// truncateOnRune cuts text to at most max bytes without splitting a
// multi-byte rune, so the stored summary is always valid UTF-8.
func truncateOnRune(text string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (s *Service) generate(ctx context.Context, priorSummary string, recent []*models.Message) (string, error) {
	var b strings.Builder
	if priorSummary != "" {
		b.WriteString("Current summary:\n")
		b.WriteString(priorSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("New messages:\n")
	for _, msg := range recent {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	return s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: summaryPrompt},
		{Role: "user", Content: b.String()},
	})
}
