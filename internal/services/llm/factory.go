package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
)

// NewLLMService creates the configured default LLM provider. Gemini is the
// only provider with embedding support, so deployments that route chat to
// Claude still need a Gemini key for the knowledge pipeline.
func NewLLMService(ctx context.Context, cfg *common.Config) (interfaces.LLMService, error) {
	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderGemini, "":
		return NewGeminiService(ctx, &cfg.Gemini)
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.LLM.DefaultProvider)
	}
}

// withJSONInstruction appends a strict JSON-only instruction to the final
// user message so the model returns machine-parseable output.
func withJSONInstruction(messages []interfaces.Message) []interfaces.Message {
	out := make([]interfaces.Message, len(messages), len(messages)+1)
	copy(out, messages)
	out = append(out, interfaces.Message{
		Role:    "user",
		Content: "Respond with valid JSON only. Do not include markdown fencing, commentary, or any text outside the JSON value.",
	})
	return out
}

// stripJSONFencing removes a leading/trailing markdown code fence from a
// model response, tolerating an optional language tag on the opening fence.
func stripJSONFencing(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "json" || firstLine == "" {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
