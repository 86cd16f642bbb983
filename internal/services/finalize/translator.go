package finalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/llm"
)

const translatePromptFmt = `Translate the following chat messages to %s. Rules:
- Preserve all markdown formatting exactly.
- Never translate proper nouns, numbers, code, or URLs.
- Return ONLY a JSON array with one entry per input message: [{"id": "<message id>", "text": "<translated text>"}].
- Every input message id must appear exactly once in the output.`

// Translator fills missing message translations. Same-language
// conversations copy original text verbatim; everything else goes through
// one batched structured call to the text service.
type Translator struct {
	llm      interfaces.LLMService
	messages interfaces.MessageStorage
	logger   arbor.ILogger
}

// NewTranslator creates a translator.
func NewTranslator(llm interfaces.LLMService, messages interfaces.MessageStorage, logger arbor.ILogger) *Translator {
	return &Translator{
		llm:      llm,
		messages: messages,
		logger:   logger,
	}
}

type translationEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// EnsureTranslations fills Translated on every message that lacks it and
// persists the updates. A response missing any requested message id fails
// the whole batch; partial sets are never persisted.
func (t *Translator) EnsureTranslations(ctx context.Context, msgs []*models.Message, conversationLang, targetLang string) error {
	var missing []*models.Message
	for _, msg := range msgs {
		if msg.Translated == "" {
			missing = append(missing, msg)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if strings.EqualFold(conversationLang, targetLang) {
		for _, msg := range missing {
			msg.Translated = msg.Content
			if err := t.messages.SaveMessage(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	}

	translated, err := t.translateBatch(ctx, missing, targetLang)
	if err != nil {
		return err
	}

	var missingIDs []string
	for _, msg := range missing {
		if _, ok := translated[msg.ID]; !ok {
			missingIDs = append(missingIDs, msg.ID)
		}
	}
	if len(missingIDs) > 0 {
		return &common.TranslationIncompleteError{MissingIDs: missingIDs}
	}

	for _, msg := range missing {
		msg.Translated = translated[msg.ID]
		if err := t.messages.SaveMessage(ctx, msg); err != nil {
			return err
		}
	}

	t.logger.Debug().
		Int("translated", len(missing)).
		Str("target_lang", targetLang).
		Msg("Filled message translations")

	return nil
}

func (t *Translator) translateBatch(ctx context.Context, msgs []*models.Message, targetLang string) (map[string]string, error) {
	type inputEntry struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	inputs := make([]inputEntry, len(msgs))
	for i, msg := range msgs {
		inputs[i] = inputEntry{ID: msg.ID, Text: msg.Content}
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, err
	}

	// Translation always routes to the quality tier: a cheap model that
	// drops formatting or ids fails the whole batch.
	ctx = llm.WithTier(ctx, llm.RouteModel("", llm.RouteContext{Translation: true}))
	raw, err := t.llm.ChatJSON(ctx, []interfaces.Message{
		{Role: "system", Content: fmt.Sprintf(translatePromptFmt, targetLang)},
		{Role: "user", Content: string(payload)},
	})
	if err != nil {
		return nil, fmt.Errorf("translation call failed: %w", err)
	}

	var entries []translationEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("translation response is not valid JSON: %w", err)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Text != "" {
			out[e.ID] = e.Text
		}
	}
	return out, nil
}
