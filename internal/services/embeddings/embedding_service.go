package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/interfaces"
)

// Service implements EmbeddingService over the configured LLM provider.
type Service struct {
	llmService interfaces.LLMService
	logger     arbor.ILogger
}

// NewService creates a new embedding service. The provider must support
// embedding generation (Gemini); Claude-only deployments fail here.
func NewService(llmService interfaces.LLMService, logger arbor.ILogger) (interfaces.EmbeddingService, error) {
	if llmService.EmbedDimension() <= 0 {
		return nil, fmt.Errorf("LLM provider %q does not support embeddings", llmService.EmbedModel())
	}
	return &Service{
		llmService: llmService,
		logger:     logger,
	}, nil
}

// GenerateEmbedding creates a vector embedding for text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	start := time.Now()
	embedding, err := s.llmService.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("LLM service returned empty embedding")
	}

	s.logger.Debug().
		Str("model", s.llmService.EmbedModel()).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return embedding, nil
}

// GenerateEmbeddings creates embeddings for multiple texts in one provider
// call. The result is positionally aligned with the input.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	start := time.Now()
	embeddings, err := s.llmService.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("batch embedding count mismatch: expected %d, got %d", len(texts), len(embeddings))
	}

	s.logger.Debug().
		Str("model", s.llmService.EmbedModel()).
		Int("count", len(texts)).
		Dur("duration", time.Since(start)).
		Msg("Generated batch embeddings")

	return embeddings, nil
}

// GenerateQueryEmbedding generates an embedding for a retrieval query.
// Queries currently embed the same way as documents.
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return s.GenerateEmbedding(ctx, query)
}

// ModelName returns the embedding model identifier.
func (s *Service) ModelName() string {
	return s.llmService.EmbedModel()
}

// Dimension returns the embedding dimension.
func (s *Service) Dimension() int {
	return s.llmService.EmbedDimension()
}
