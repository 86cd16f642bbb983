package summary

import (
	"context"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
)

type fakeLLM struct {
	response string
	calls    int
	prompts  []string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	return f.response, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []interfaces.Message, onDelta func(string)) (string, error) {
	return f.response, nil
}

func (f *fakeLLM) ChatJSON(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "{}", nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

func (f *fakeLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeLLM) EmbedModel() string  { return "" }
func (f *fakeLLM) EmbedDimension() int { return 0 }
func (f *fakeLLM) Close() error        { return nil }

type fakeConversations struct {
	convs map[string]*models.Conversation
}

func (f *fakeConversations) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	copied := *conv
	f.convs[conv.ChatName] = &copied
	return nil
}

func (f *fakeConversations) GetConversation(ctx context.Context, chatName string) (*models.Conversation, error) {
	conv, ok := f.convs[chatName]
	if !ok {
		return nil, common.NewNotFoundError("conversation", chatName)
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeConversations) ListConversations(ctx context.Context, status models.ConversationStatus, limit int) ([]*models.Conversation, error) {
	return nil, nil
}

type fakeMessages struct {
	msgs []*models.Message
}

func (f *fakeMessages) SaveMessage(ctx context.Context, msg *models.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeMessages) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return nil, common.NewNotFoundError("message", id)
}

func (f *fakeMessages) GetMessages(ctx context.Context, chatName string) ([]*models.Message, error) {
	out := append([]*models.Message(nil), f.msgs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (f *fakeMessages) GetRecentMessages(ctx context.Context, chatName string, limit int) ([]*models.Message, error) {
	all, _ := f.GetMessages(ctx, chatName)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeMessages) MaxSequence(ctx context.Context, chatName string) (int, error) {
	return len(f.msgs), nil
}

func (f *fakeMessages) CountMessages(ctx context.Context, chatName string) (int, error) {
	return len(f.msgs), nil
}

func summaryFixture(everyN, maxChars int) (*Service, *fakeLLM, *fakeConversations, *fakeMessages) {
	llm := &fakeLLM{response: "Customer wants a 3m quartz worktop in white."}
	convs := &fakeConversations{convs: make(map[string]*models.Conversation)}
	msgs := &fakeMessages{}
	svc := NewService(&common.ChatConfig{SummaryEveryN: everyN, SummaryMaxChars: maxChars},
		llm, convs, msgs, arbor.NewLogger())
	return svc, llm, convs, msgs
}

func seedConversation(convs *fakeConversations, msgs *fakeMessages, messageCount int) {
	convs.convs["FP-1"] = &models.Conversation{
		ChatName:     "FP-1",
		Status:       models.ConversationActive,
		MessageCount: messageCount,
	}
	for i := 1; i <= messageCount; i++ {
		msgs.msgs = append(msgs.msgs, &models.Message{
			ID: "msg", ChatName: "FP-1", Role: models.RoleUser,
			Content: "turn content", Sequence: i,
		})
	}
}

func TestUpdateIfNeeded_RefreshesOnInterval(t *testing.T) {
	svc, llm, convs, msgs := summaryFixture(4, 4000)
	seedConversation(convs, msgs, 4)

	updated, err := svc.UpdateIfNeeded(context.Background(), "FP-1")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, "Customer wants a 3m quartz worktop in white.", convs.convs["FP-1"].Meta.Summary)
}

func TestUpdateIfNeeded_SkipsOffInterval(t *testing.T) {
	svc, llm, convs, msgs := summaryFixture(4, 4000)
	seedConversation(convs, msgs, 5)

	updated, err := svc.UpdateIfNeeded(context.Background(), "FP-1")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Zero(t, llm.calls)
}

func TestUpdateIfNeeded_DisabledWhenIntervalZero(t *testing.T) {
	svc, llm, convs, msgs := summaryFixture(0, 4000)
	seedConversation(convs, msgs, 4)

	updated, err := svc.UpdateIfNeeded(context.Background(), "FP-1")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Zero(t, llm.calls)
}

func TestUpdateIfNeeded_PriorSummaryFeedsThePrompt(t *testing.T) {
	svc, llm, convs, msgs := summaryFixture(2, 4000)
	seedConversation(convs, msgs, 2)
	convs.convs["FP-1"].Meta.Summary = "Earlier: asked about granite."

	_, err := svc.UpdateIfNeeded(context.Background(), "FP-1")
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Earlier: asked about granite.")
	assert.Contains(t, llm.prompts[0], "turn content")
}

func TestUpdateIfNeeded_TruncatesToMaxChars(t *testing.T) {
	svc, llm, convs, msgs := summaryFixture(2, 10)
	llm.response = strings.Repeat("x", 50)
	seedConversation(convs, msgs, 2)

	updated, err := svc.UpdateIfNeeded(context.Background(), "FP-1")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Len(t, convs.convs["FP-1"].Meta.Summary, 10)
}

func TestUpdateIfNeeded_TruncationKeepsValidUTF8(t *testing.T) {
	svc, llm, convs, msgs := summaryFixture(2, 10)
	// "é" is two bytes, so a naive byte cut at 10 would land mid-rune.
	llm.response = strings.Repeat("é", 20)
	seedConversation(convs, msgs, 2)

	updated, err := svc.UpdateIfNeeded(context.Background(), "FP-1")
	require.NoError(t, err)
	assert.True(t, updated)

	got := convs.convs["FP-1"].Meta.Summary
	assert.True(t, utf8.ValidString(got), "truncated summary must stay valid UTF-8")
	assert.LessOrEqual(t, len(got), 10)
	assert.Equal(t, strings.Repeat("é", 5), got)
}

func TestUpdateIfNeeded_MissingConversation(t *testing.T) {
	svc, _, _, _ := summaryFixture(2, 4000)

	_, err := svc.UpdateIfNeeded(context.Background(), "FP-missing")
	assert.True(t, common.IsNotFound(err))
}
