package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines the interface for language model operations: chat
// completions, structured JSON completions, streaming, and embedding
// generation. Implementations wrap cloud providers (Gemini, Claude).
type LLMService interface {
	// Chat generates a completion for the conversation history. The
	// messages slice contains the full context in chronological order,
	// system prompt first.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatStream generates a completion and delivers incremental text
	// fragments to onDelta as they arrive. Returns the full response.
	ChatStream(ctx context.Context, messages []Message, onDelta func(delta string)) (string, error)

	// ChatJSON generates a completion with a strict instruction to return
	// only JSON matching the described shape, and returns the raw JSON
	// text with any markdown fencing stripped.
	ChatJSON(ctx context.Context, messages []Message) (string, error)

	// Embed generates an embedding vector for the given text with the
	// provider's fixed model/dimension contract.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedModel returns the embedding model identifier.
	EmbedModel() string

	// EmbedDimension returns the fixed embedding dimensionality.
	EmbedDimension() int

	// Close releases provider resources.
	Close() error
}
