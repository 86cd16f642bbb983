package finalize

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/llm"
)

// In-memory collaborator fakes shared by the tests in this package.

type fakeLLM struct {
	jsonResponse string
	jsonError    error
	jsonCalls    int
	jsonTiers    []llm.ModelTier
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []interfaces.Message, onDelta func(string)) (string, error) {
	return "", nil
}

func (f *fakeLLM) ChatJSON(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.jsonCalls++
	tier, _ := llm.TierFrom(ctx)
	f.jsonTiers = append(f.jsonTiers, tier)
	return f.jsonResponse, f.jsonError
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeLLM) EmbedModel() string  { return "" }
func (f *fakeLLM) EmbedDimension() int { return 0 }
func (f *fakeLLM) Close() error        { return nil }

type fakeConversationStorage struct {
	convs map[string]*models.Conversation
	saves int
}

func newFakeConversationStorage(convs ...*models.Conversation) *fakeConversationStorage {
	s := &fakeConversationStorage{convs: make(map[string]*models.Conversation)}
	for _, c := range convs {
		s.convs[c.ChatName] = c
	}
	return s
}

func (s *fakeConversationStorage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	s.saves++
	copied := *conv
	s.convs[conv.ChatName] = &copied
	return nil
}

func (s *fakeConversationStorage) GetConversation(ctx context.Context, chatName string) (*models.Conversation, error) {
	conv, ok := s.convs[chatName]
	if !ok {
		return nil, common.NewNotFoundError("conversation", chatName)
	}
	copied := *conv
	return &copied, nil
}

func (s *fakeConversationStorage) ListConversations(ctx context.Context, status models.ConversationStatus, limit int) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, c := range s.convs {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeMessageStorage struct {
	msgs map[string]*models.Message
}

func newFakeMessageStorage(msgs ...*models.Message) *fakeMessageStorage {
	s := &fakeMessageStorage{msgs: make(map[string]*models.Message)}
	for _, m := range msgs {
		s.msgs[m.ID] = m
	}
	return s
}

func (s *fakeMessageStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	copied := *msg
	s.msgs[msg.ID] = &copied
	return nil
}

func (s *fakeMessageStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg, ok := s.msgs[id]
	if !ok {
		return nil, common.NewNotFoundError("message", id)
	}
	return msg, nil
}

func (s *fakeMessageStorage) GetMessages(ctx context.Context, chatName string) ([]*models.Message, error) {
	var out []*models.Message
	for _, m := range s.msgs {
		if m.ChatName == chatName {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *fakeMessageStorage) GetRecentMessages(ctx context.Context, chatName string, limit int) ([]*models.Message, error) {
	all, _ := s.GetMessages(ctx, chatName)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *fakeMessageStorage) MaxSequence(ctx context.Context, chatName string) (int, error) {
	max := 0
	for _, m := range s.msgs {
		if m.ChatName == chatName && m.Sequence > max {
			max = m.Sequence
		}
	}
	return max, nil
}

func (s *fakeMessageStorage) CountMessages(ctx context.Context, chatName string) (int, error) {
	n := 0
	for _, m := range s.msgs {
		if m.ChatName == chatName {
			n++
		}
	}
	return n, nil
}

type fakeAttachmentStorage struct {
	atts map[string]*models.Attachment
}

func newFakeAttachmentStorage(atts ...*models.Attachment) *fakeAttachmentStorage {
	s := &fakeAttachmentStorage{atts: make(map[string]*models.Attachment)}
	for _, a := range atts {
		s.atts[a.ID] = a
	}
	return s
}

func (s *fakeAttachmentStorage) SaveAttachment(ctx context.Context, att *models.Attachment) error {
	copied := *att
	s.atts[att.ID] = &copied
	return nil
}

func (s *fakeAttachmentStorage) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	att, ok := s.atts[id]
	if !ok {
		return nil, common.NewNotFoundError("attachment", id)
	}
	return att, nil
}

func (s *fakeAttachmentStorage) GetAttachmentsByChat(ctx context.Context, chatName string) ([]*models.Attachment, error) {
	var out []*models.Attachment
	for _, a := range s.atts {
		if a.ChatName == chatName {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeAttachmentStorage) GetExpired(ctx context.Context, now time.Time) ([]*models.Attachment, error) {
	var out []*models.Attachment
	for _, a := range s.atts {
		if a.DeletedAt == nil && !a.ExpiresAt.IsZero() && a.ExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeBlobStore struct {
	objects map[string][]byte
	puts    []string
	putErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (b *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	b.objects[key] = data
	b.puts = append(b.puts, key)
	return "https://blob.test/" + key, nil
}

func (b *fakeBlobStore) Get(ctx context.Context, url string) ([]byte, error) {
	key := url[len("https://blob.test/"):]
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, url string) error {
	key := url[len("https://blob.test/"):]
	delete(b.objects, key)
	return nil
}

type fakeDriveStore struct {
	uploads []string
	err     error
}

func (d *fakeDriveStore) Upload(ctx context.Context, fileName string, data []byte, mimeType string) (*interfaces.DriveUpload, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.uploads = append(d.uploads, fileName)
	return &interfaces.DriveUpload{
		FileID:      "file-" + fileName,
		WebViewLink: "https://drive.test/" + fileName,
	}, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, chatName, to, subject, html string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, to)
	return "mail_test", nil
}

type fakePDFRenderer struct {
	renders int
	err     error
}

func (p *fakePDFRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.renders++
	return []byte("%PDF-1.4 fake"), nil
}
