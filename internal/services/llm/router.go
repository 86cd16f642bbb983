package llm

import (
	"context"
	"strings"
)

// ModelTier identifies the quality class of model a request should use.
type ModelTier string

const (
	// TierFast is for short, routine turns where latency matters.
	TierFast ModelTier = "fast"

	// TierQuality is for turns that need careful reasoning: pricing and
	// quoting questions, complaints, translation, and long inputs.
	TierQuality ModelTier = "quality"
)

// RouteContext carries the non-text signals considered during routing.
type RouteContext struct {
	// MessageCount is the number of messages already in the conversation.
	MessageCount int

	// Translation marks requests that render translated transcript text.
	Translation bool
}

var qualityKeywords = []string{
	"quote", "quotation", "price", "pricing", "cost", "invoice",
	"complaint", "refund", "cancel", "warranty", "damaged",
	"measurement", "dimensions", "installation", "custom",
}

// RouteModel maps a user turn to a model tier. This is a keyword heuristic,
// not a classifier; it exists to be cheap and explainable, and is expected
// to be replaced if routing quality ever matters.
func RouteModel(text string, rctx RouteContext) ModelTier {
	if rctx.Translation {
		return TierQuality
	}
	if len(text) > 1500 {
		return TierQuality
	}
	// Long-running conversations tend to carry accumulated context that
	// cheaper models handle poorly.
	if rctx.MessageCount > 40 {
		return TierQuality
	}

	lower := strings.ToLower(text)
	for _, kw := range qualityKeywords {
		if strings.Contains(lower, kw) {
			return TierQuality
		}
	}
	return TierFast
}

type tierContextKey struct{}

// WithTier marks a request context with the tier the routed call should
// use. Providers read the mark when resolving which model to invoke.
func WithTier(ctx context.Context, tier ModelTier) context.Context {
	return context.WithValue(ctx, tierContextKey{}, tier)
}

// TierFrom returns the tier marked on the context, if any. Calls with no
// mark use the provider's configured default model.
func TierFrom(ctx context.Context) (ModelTier, bool) {
	tier, ok := ctx.Value(tierContextKey{}).(ModelTier)
	return tier, ok
}
