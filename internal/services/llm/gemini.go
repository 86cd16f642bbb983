package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google Gemini
// API. It provides chat completions, streaming, and embedding generation.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates a new Gemini LLM service instance.
// Requires a non-empty API key in the config.
func NewGeminiService(ctx context.Context, cfg *common.GeminiConfig) (*GeminiService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gemini config cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger := common.GetLogger().WithPrefix("gemini")
	logger.Debug().
		Str("model", cfg.Model).
		Str("embed_model", cfg.EmbedModel).
		Int("embed_dimension", cfg.EmbedDimension).
		Msg("Gemini LLM service initialized")

	return &GeminiService{
		config:  cfg,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// Chat generates a completion for the conversation history.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	response, err := s.generateCompletion(timeoutCtx, messages)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Gemini chat completion failed")
		return "", &common.UpstreamError{Service: "gemini", Err: err}
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(start)).
		Msg("Gemini chat completion completed")

	return response, nil
}

// ChatStream generates a completion and delivers incremental text fragments
// to onDelta as they arrive. Returns the accumulated full response.
func (s *GeminiService) ChatStream(ctx context.Context, messages []interfaces.Message, onDelta func(delta string)) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contents, config, err := s.buildRequest(messages)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for resp, err := range s.client.Models.GenerateContentStream(timeoutCtx, s.modelFor(timeoutCtx), contents, config) {
		if err != nil {
			return "", &common.UpstreamError{Service: "gemini", Err: fmt.Errorf("chat stream failed: %w", err)}
		}
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					full.WriteString(part.Text)
					if onDelta != nil {
						onDelta(part.Text)
					}
				}
			}
		}
	}

	if full.Len() == 0 {
		return "", &common.UpstreamError{Service: "gemini", Err: fmt.Errorf("no response generated from chat model")}
	}

	return full.String(), nil
}

// ChatJSON generates a completion with a strict JSON-only instruction and
// returns the raw JSON text with markdown fencing stripped.
func (s *GeminiService) ChatJSON(ctx context.Context, messages []interfaces.Message) (string, error) {
	response, err := s.Chat(ctx, withJSONInstruction(messages))
	if err != nil {
		return "", err
	}
	return stripJSONFencing(response), nil
}

// Embed generates an embedding vector for the given text with the
// configured model and output dimensionality.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outputDim := int32(s.config.EmbedDimension)
	embedConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := s.client.Models.EmbedContent(timeoutCtx, s.config.EmbedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embedConfig)
	if err != nil {
		return nil, &common.UpstreamError{Service: "gemini", Err: fmt.Errorf("embedding generation failed: %w", err)}
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if embedding == nil {
		return nil, &common.UpstreamError{Service: "gemini", Err: fmt.Errorf("no embedding returned from API")}
	}
	if len(embedding) != s.config.EmbedDimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.config.EmbedDimension, len(embedding))
	}

	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in a single API call.
// The result slice is positionally aligned with the input texts.
func (s *GeminiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty for batch embedding")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("text at index %d cannot be empty", i)
		}
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	outputDim := int32(s.config.EmbedDimension)
	embedConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := s.client.Models.EmbedContent(timeoutCtx, s.config.EmbedModel, contents, embedConfig)
	if err != nil {
		return nil, &common.UpstreamError{Service: "gemini", Err: fmt.Errorf("batch embedding failed: %w", err)}
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, &common.UpstreamError{Service: "gemini", Err: fmt.Errorf("batch embedding count mismatch: expected %d, got %d", len(texts), got)}
	}

	embeddings := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if len(emb.Values) != s.config.EmbedDimension {
			return nil, fmt.Errorf("embedding dimension mismatch at index %d: expected %d, got %d", i, s.config.EmbedDimension, len(emb.Values))
		}
		embeddings[i] = emb.Values
	}

	return embeddings, nil
}

// EmbedModel returns the embedding model identifier.
func (s *GeminiService) EmbedModel() string {
	return s.config.EmbedModel
}

// EmbedDimension returns the fixed embedding dimensionality.
func (s *GeminiService) EmbedDimension() int {
	return s.config.EmbedDimension
}

// Close releases the Gemini client.
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}

// modelFor resolves the chat model for one call: requests routed to the
// quality tier use the quality model when one is configured, everything
// else uses the default.
func (s *GeminiService) modelFor(ctx context.Context) string {
	if tier, ok := TierFrom(ctx); ok && tier == TierQuality && s.config.QualityModel != "" {
		return s.config.QualityModel
	}
	return s.config.Model
}

// buildRequest converts messages to Gemini contents plus a generation config
// carrying temperature and any system instruction.
func (s *GeminiService) buildRequest(messages []interfaces.Message) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(s.config.Temperature)),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	return contents, config, nil
}

func (s *GeminiService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, config, err := s.buildRequest(messages)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.modelFor(ctx), contents, config)
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from chat model")
	}

	return response.String(), nil
}

// convertMessagesToGemini converts []interfaces.Message to Gemini content
// format. System messages are extracted separately for use as the system
// instruction. Returns the user/model contents, the first system message
// text (if any), and an error.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}

	return contents, systemText, nil
}
