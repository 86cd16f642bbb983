package interfaces

import "context"

// EmbeddingService wraps the LLM provider's embedding operations behind a
// fixed model/dimension contract for the knowledge pipeline.
type EmbeddingService interface {
	// GenerateEmbedding creates a vector embedding for the given text.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddings creates embeddings for multiple texts, positionally
	// aligned with the input slice.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// GenerateQueryEmbedding creates an embedding for a retrieval query.
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// ModelName returns the embedding model identifier.
	ModelName() string

	// Dimension returns the fixed embedding dimensionality.
	Dimension() int
}
