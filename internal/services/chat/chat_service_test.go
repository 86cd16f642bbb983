package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/llm"
	"github.com/ternarybob/facet/internal/services/retrieval"
	"github.com/ternarybob/facet/internal/services/summary"
)

type fakeLLM struct {
	streamResponse string
	streamErr      error
	prompts        [][]interfaces.Message
	tiers          []llm.ModelTier
	chatResponse   string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return f.chatResponse, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []interfaces.Message, onDelta func(delta string)) (string, error) {
	f.prompts = append(f.prompts, messages)
	tier, _ := llm.TierFrom(ctx)
	f.tiers = append(f.tiers, tier)
	if f.streamErr != nil {
		return "", f.streamErr
	}
	for _, word := range strings.SplitAfter(f.streamResponse, " ") {
		onDelta(word)
	}
	return f.streamResponse, nil
}

func (f *fakeLLM) ChatJSON(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "{}", nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0, 0}, nil
}

func (f *fakeLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0}
	}
	return out, nil
}

func (f *fakeLLM) EmbedModel() string  { return "fake-embed" }
func (f *fakeLLM) EmbedDimension() int { return 2 }
func (f *fakeLLM) Close() error        { return nil }

type fakeEmbedder struct{}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{0, 0}, nil
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{0, 0}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }
func (f *fakeEmbedder) Dimension() int    { return 2 }

type fakeSectionStorage struct{}

func (f *fakeSectionStorage) SaveSections(ctx context.Context, sections []*models.Section) error {
	return nil
}

func (f *fakeSectionStorage) DeleteSectionsByPage(ctx context.Context, pageID string) error {
	return nil
}

func (f *fakeSectionStorage) GetSectionsByPage(ctx context.Context, pageID string) ([]*models.Section, error) {
	return nil, nil
}

func (f *fakeSectionStorage) NearestSections(ctx context.Context, query []float32, limit int, domains []string) ([]*models.SectionMatch, error) {
	return nil, nil
}

func (f *fakeSectionStorage) CountSections(ctx context.Context) (int, error) { return 0, nil }

type fakeReferenceStorage struct{}

func (f *fakeReferenceStorage) UpsertDoc(ctx context.Context, doc *models.ReferenceDoc) error {
	return nil
}

func (f *fakeReferenceStorage) GetDoc(ctx context.Context, path string) (*models.ReferenceDoc, error) {
	return nil, common.NewNotFoundError("reference doc", path)
}

func (f *fakeReferenceStorage) SaveChunks(ctx context.Context, chunks []*models.ReferenceChunk) error {
	return nil
}

func (f *fakeReferenceStorage) DeleteChunksByDoc(ctx context.Context, docPath string) error {
	return nil
}

func (f *fakeReferenceStorage) NearestChunks(ctx context.Context, query []float32, limit int) ([]*models.ReferenceMatch, error) {
	return nil, nil
}

type fakeConversationStorage struct {
	convs map[string]*models.Conversation
}

func newFakeConversationStorage() *fakeConversationStorage {
	return &fakeConversationStorage{convs: make(map[string]*models.Conversation)}
}

func (f *fakeConversationStorage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	copied := *conv
	f.convs[conv.ChatName] = &copied
	return nil
}

func (f *fakeConversationStorage) GetConversation(ctx context.Context, chatName string) (*models.Conversation, error) {
	conv, ok := f.convs[chatName]
	if !ok {
		return nil, common.NewNotFoundError("conversation", chatName)
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeConversationStorage) ListConversations(ctx context.Context, status models.ConversationStatus, limit int) ([]*models.Conversation, error) {
	return nil, nil
}

type fakeMessageStorage struct {
	msgs map[string]*models.Message
}

func newFakeMessageStorage() *fakeMessageStorage {
	return &fakeMessageStorage{msgs: make(map[string]*models.Message)}
}

func (f *fakeMessageStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	copied := *msg
	f.msgs[msg.ID] = &copied
	return nil
}

func (f *fakeMessageStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg, ok := f.msgs[id]
	if !ok {
		return nil, common.NewNotFoundError("message", id)
	}
	return msg, nil
}

func (f *fakeMessageStorage) GetMessages(ctx context.Context, chatName string) ([]*models.Message, error) {
	var out []*models.Message
	for _, msg := range f.msgs {
		if msg.ChatName == chatName {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (f *fakeMessageStorage) GetRecentMessages(ctx context.Context, chatName string, limit int) ([]*models.Message, error) {
	all, _ := f.GetMessages(ctx, chatName)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeMessageStorage) MaxSequence(ctx context.Context, chatName string) (int, error) {
	max := 0
	for _, msg := range f.msgs {
		if msg.ChatName == chatName && msg.Sequence > max {
			max = msg.Sequence
		}
	}
	return max, nil
}

func (f *fakeMessageStorage) CountMessages(ctx context.Context, chatName string) (int, error) {
	all, _ := f.GetMessages(ctx, chatName)
	return len(all), nil
}

type fakeAttachmentStorage struct {
	atts []*models.Attachment
}

func (f *fakeAttachmentStorage) SaveAttachment(ctx context.Context, att *models.Attachment) error {
	copied := *att
	f.atts = append(f.atts, &copied)
	return nil
}

func (f *fakeAttachmentStorage) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	for _, att := range f.atts {
		if att.ID == id {
			return att, nil
		}
	}
	return nil, common.NewNotFoundError("attachment", id)
}

func (f *fakeAttachmentStorage) GetAttachmentsByChat(ctx context.Context, chatName string) ([]*models.Attachment, error) {
	var out []*models.Attachment
	for _, att := range f.atts {
		if att.ChatName == chatName {
			out = append(out, att)
		}
	}
	return out, nil
}

func (f *fakeAttachmentStorage) GetExpired(ctx context.Context, now time.Time) ([]*models.Attachment, error) {
	return nil, nil
}

type chatFixture struct {
	svc   *Service
	llm   *fakeLLM
	convs *fakeConversationStorage
	msgs  *fakeMessageStorage
	atts  *fakeAttachmentStorage
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	logger := arbor.NewLogger()
	llm := &fakeLLM{streamResponse: "We offer quartz and granite worktops.", chatResponse: "Summary text."}
	convs := newFakeConversationStorage()
	msgs := newFakeMessageStorage()
	atts := &fakeAttachmentStorage{}

	retriever := retrieval.NewService(&common.RetrievalConfig{TopK: 5},
		&fakeEmbedder{}, &fakeSectionStorage{}, &fakeReferenceStorage{}, logger)
	summarizer := summary.NewService(&common.ChatConfig{SummaryEveryN: 10, SummaryMaxChars: 2000},
		llm, convs, msgs, logger)

	svc := NewService(&common.ChatConfig{NamePrefix: "FP", HistoryWindow: 12, UploadExpiry: 30 * 24 * time.Hour},
		llm, retriever, summarizer, convs, msgs, atts, logger)
	return &chatFixture{svc: svc, llm: llm, convs: convs, msgs: msgs, atts: atts}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out waiting for chat events")
		}
	}
}

func TestTurn_CreatesConversationAndStreams(t *testing.T) {
	fx := newChatFixture(t)

	events, err := fx.svc.Turn(context.Background(), &TurnRequest{
		Content:  "What worktop materials do you offer?",
		Language: "en",
		Email:    "anna@example.com",
	})
	require.NoError(t, err)

	all := collect(t, events)
	require.NotEmpty(t, all)

	meta := all[0]
	assert.Equal(t, EventMeta, meta.Type)
	assert.True(t, strings.HasPrefix(meta.ChatName, "FP_"), "generated chat name carries the prefix")
	assert.NotEmpty(t, meta.MessageID)

	final := all[len(all)-1]
	assert.Equal(t, EventFinal, final.Type)
	assert.Equal(t, "We offer quartz and granite worktops.", final.Content)

	var deltas strings.Builder
	for _, ev := range all[1 : len(all)-1] {
		require.Equal(t, EventDelta, ev.Type)
		deltas.WriteString(ev.Content)
	}
	assert.Equal(t, final.Content, deltas.String())

	conv := fx.convs.convs[meta.ChatName]
	require.NotNil(t, conv)
	assert.Equal(t, models.ConversationActive, conv.Status)
	assert.Equal(t, 2, conv.MessageCount, "user turn plus assistant turn")
	assert.Equal(t, []string{"anna@example.com"}, conv.UserEmails)
}

func TestTurn_SequencesAreGapless(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	events, err := fx.svc.Turn(ctx, &TurnRequest{Content: "first question"})
	require.NoError(t, err)
	chatName := collect(t, events)[0].ChatName

	events, err = fx.svc.Turn(ctx, &TurnRequest{ChatName: chatName, Content: "second question"})
	require.NoError(t, err)
	collect(t, events)

	msgs, err := fx.msgs.GetMessages(ctx, chatName)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, msg := range msgs {
		assert.Equal(t, i+1, msg.Sequence)
	}
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleBot, msgs[1].Role)
}

func TestTurn_EmptyContentRejected(t *testing.T) {
	fx := newChatFixture(t)

	_, err := fx.svc.Turn(context.Background(), &TurnRequest{Content: "   "})
	require.Error(t, err)
	var vErr *common.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestTurn_ClosedConversationRejected(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.convs.SaveConversation(ctx, &models.Conversation{
		ChatName: "FP-1001",
		Status:   models.ConversationClosed,
	}))

	_, err := fx.svc.Turn(ctx, &TurnRequest{ChatName: "FP-1001", Content: "hello again"})
	require.Error(t, err)
	var vErr *common.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "chat_name", vErr.Field)
}

func TestTurn_GenerationFailureEmitsErrorEvent(t *testing.T) {
	fx := newChatFixture(t)
	fx.llm.streamErr = errors.New("provider unavailable")

	events, err := fx.svc.Turn(context.Background(), &TurnRequest{Content: "hello"})
	require.NoError(t, err)

	all := collect(t, events)
	require.Len(t, all, 2)
	assert.Equal(t, EventMeta, all[0].Type)
	assert.Equal(t, EventError, all[1].Type)
	assert.Equal(t, "generation failed", all[1].Error)

	// The user turn is already persisted; only the assistant turn is missing.
	chatName := all[0].ChatName
	msgs, err := fx.msgs.GetMessages(context.Background(), chatName)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestTurn_RoutesModelTier(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	events, err := fx.svc.Turn(ctx, &TurnRequest{Content: "do you have showrooms nearby?"})
	require.NoError(t, err)
	collect(t, events)

	events, err = fx.svc.Turn(ctx, &TurnRequest{Content: "how much would a quartz worktop cost?"})
	require.NoError(t, err)
	collect(t, events)

	require.Len(t, fx.llm.tiers, 2)
	assert.Equal(t, llm.TierFast, fx.llm.tiers[0], "routine turns stream on the fast tier")
	assert.Equal(t, llm.TierQuality, fx.llm.tiers[1], "pricing language routes to the quality tier")
}

func TestTurn_PersistsAttachmentsAndFeedsDocuments(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	events, err := fx.svc.Turn(ctx, &TurnRequest{
		Content: "Can you quote the kitchen in this plan?",
		Attachments: []TurnAttachment{
			{FileName: "kitchen-plan.pdf", MimeType: "application/pdf", SizeBytes: 52000, URL: "https://uploads.example/kitchen-plan.pdf"},
			{URL: "https://pinterest.example/board/123"},
		},
		ExtractedDocuments: []ExtractedDocument{
			{Name: "kitchen-plan.pdf", Content: "Island 2400x900mm, quartz, waterfall edge."},
		},
	})
	require.NoError(t, err)
	all := collect(t, events)

	chatName := all[0].ChatName
	userMsgID := all[0].MessageID

	atts, err := fx.atts.GetAttachmentsByChat(ctx, chatName)
	require.NoError(t, err)
	require.Len(t, atts, 2)

	upload := atts[0]
	assert.Equal(t, models.AttachmentUserUpload, upload.Kind)
	assert.Equal(t, userMsgID, upload.MessageID)
	assert.Equal(t, "kitchen-plan.pdf", upload.FileName)
	assert.Equal(t, "https://uploads.example/kitchen-plan.pdf", upload.OriginalURL)
	assert.False(t, upload.ExpiresAt.IsZero(), "uploads carry a retention deadline")

	link := atts[1]
	assert.Equal(t, models.AttachmentExternalURL, link.Kind, "a bare URL is recorded as an external link")
	assert.Equal(t, "https://pinterest.example/board/123", link.ExternalURL)

	userMsg, err := fx.msgs.GetMessage(ctx, userMsgID)
	require.NoError(t, err)
	assert.True(t, userMsg.HasAttachment)

	require.Len(t, fx.llm.prompts, 1)
	system := fx.llm.prompts[0][0]
	require.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "[uploaded document: kitchen-plan.pdf]")
	assert.Contains(t, system.Content, "Island 2400x900mm, quartz, waterfall edge.")
}

func TestTurn_PromptCarriesHistoryAndSystemContext(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	events, err := fx.svc.Turn(ctx, &TurnRequest{Content: "Do you install worktops?"})
	require.NoError(t, err)
	collect(t, events)

	require.Len(t, fx.llm.prompts, 1)
	prompt := fx.llm.prompts[0]
	require.NotEmpty(t, prompt)
	assert.Equal(t, "system", prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "surface design business")

	last := prompt[len(prompt)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "Do you install worktops?", last.Content)
}
