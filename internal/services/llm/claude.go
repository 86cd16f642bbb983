package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
)

// ClaudeService implements the LLMService interface using the Anthropic
// Claude API. Claude provides chat completions only; embedding operations
// return an error and callers should route embedding work to Gemini.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude LLM service instance.
// Requires a non-empty API key in the config.
func NewClaudeService(cfg *common.ClaudeConfig) (*ClaudeService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("claude config cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude API key is required")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 2 * time.Minute
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	logger := common.GetLogger().WithPrefix("claude")
	logger.Debug().
		Str("model", cfg.Model).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized")

	return &ClaudeService{
		config:    cfg,
		logger:    logger,
		client:    &client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Chat generates a completion for the conversation history.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	params, err := s.buildParams(timeoutCtx, messages)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Claude chat completion failed")
		return "", &common.UpstreamError{Service: "claude", Err: fmt.Errorf("chat completion failed: %w", err)}
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", &common.UpstreamError{Service: "claude", Err: fmt.Errorf("no response generated from Claude API")}
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude chat completion completed")

	return response.String(), nil
}

// ChatStream generates a completion and delivers incremental text fragments
// to onDelta as they arrive. Returns the accumulated full response.
func (s *ClaudeService) ChatStream(ctx context.Context, messages []interfaces.Message, onDelta func(delta string)) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params, err := s.buildParams(timeoutCtx, messages)
	if err != nil {
		return "", err
	}

	stream := s.client.Messages.NewStreaming(timeoutCtx, params)
	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if ev.Delta.Text != "" {
				full.WriteString(ev.Delta.Text)
				if onDelta != nil {
					onDelta(ev.Delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", &common.UpstreamError{Service: "claude", Err: fmt.Errorf("chat stream failed: %w", err)}
	}
	if full.Len() == 0 {
		return "", &common.UpstreamError{Service: "claude", Err: fmt.Errorf("no response generated from Claude API")}
	}

	return full.String(), nil
}

// ChatJSON generates a completion with a strict JSON-only instruction and
// returns the raw JSON text with markdown fencing stripped.
func (s *ClaudeService) ChatJSON(ctx context.Context, messages []interfaces.Message) (string, error) {
	response, err := s.Chat(ctx, withJSONInstruction(messages))
	if err != nil {
		return "", err
	}
	return stripJSONFencing(response), nil
}

// Embed is not supported by Claude. Embedding work routes to Gemini.
func (s *ClaudeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("claude does not support embedding generation")
}

// EmbedBatch is not supported by Claude.
func (s *ClaudeService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("claude does not support embedding generation")
}

// EmbedModel returns an empty string; Claude has no embedding model.
func (s *ClaudeService) EmbedModel() string {
	return ""
}

// EmbedDimension returns zero; Claude has no embedding model.
func (s *ClaudeService) EmbedDimension() int {
	return 0
}

// Close releases the Claude client.
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	s.client = nil
	return nil
}

// modelFor resolves the chat model for one call: requests routed to the
// quality tier use the quality model when one is configured, everything
// else uses the default.
func (s *ClaudeService) modelFor(ctx context.Context) string {
	if tier, ok := TierFrom(ctx); ok && tier == TierQuality && s.config.QualityModel != "" {
		return s.config.QualityModel
	}
	return s.config.Model
}

func (s *ClaudeService) buildParams(ctx context.Context, messages []interfaces.Message) (anthropic.MessageNewParams, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.modelFor(ctx)),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(s.config.Temperature)
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}
	return params, nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude message
// params. System messages are extracted separately for the System parameter.
// Returns the user/assistant messages, the first system message text (if
// any), and an error.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	if len(claudeMessages) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}

	return claudeMessages, systemText, nil
}
