package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/models"
)

type fakeAttachmentStorage struct {
	expired []*models.Attachment
	saved   map[string]*models.Attachment
}

func newFakeAttachmentStorage(expired ...*models.Attachment) *fakeAttachmentStorage {
	return &fakeAttachmentStorage{expired: expired, saved: make(map[string]*models.Attachment)}
}

func (f *fakeAttachmentStorage) SaveAttachment(ctx context.Context, att *models.Attachment) error {
	copied := *att
	f.saved[att.ID] = &copied
	return nil
}

func (f *fakeAttachmentStorage) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	return nil, common.NewNotFoundError("attachment", id)
}

func (f *fakeAttachmentStorage) GetAttachmentsByChat(ctx context.Context, chatName string) ([]*models.Attachment, error) {
	return nil, nil
}

func (f *fakeAttachmentStorage) GetExpired(ctx context.Context, now time.Time) ([]*models.Attachment, error) {
	return f.expired, nil
}

type fakeBlobStore struct {
	deleted  []string
	failURLs map[string]bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{failURLs: make(map[string]bool)}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "https://blob.test/" + key, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, url string) ([]byte, error) {
	return nil, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, url string) error {
	if f.failURLs[url] {
		return errors.New("blob backend unavailable")
	}
	f.deleted = append(f.deleted, url)
	return nil
}

func TestSweep_DeletesBlobsAndSoftDeletes(t *testing.T) {
	atts := newFakeAttachmentStorage(
		&models.Attachment{
			ID:          "att_1",
			ChatName:    "FP-1",
			OriginalURL: "https://blob.test/originals/att_1",
			PreviewURL:  "https://blob.test/previews/att_1.jpg",
		},
		&models.Attachment{
			ID:          "att_2",
			ChatName:    "FP-1",
			OriginalURL: "https://blob.test/originals/att_2",
		},
	)
	blobs := newFakeBlobStore()
	svc := NewService(atts, blobs, arbor.NewLogger())

	stats, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Expired)
	assert.Equal(t, 3, stats.BlobsDeleted)
	assert.Zero(t, stats.Errors)
	assert.Len(t, blobs.deleted, 3)

	for _, id := range []string{"att_1", "att_2"} {
		saved := atts.saved[id]
		require.NotNil(t, saved)
		assert.Empty(t, saved.OriginalURL)
		assert.Empty(t, saved.PreviewURL)
		require.NotNil(t, saved.DeletedAt)
	}
}

func TestSweep_NothingExpired(t *testing.T) {
	svc := NewService(newFakeAttachmentStorage(), newFakeBlobStore(), arbor.NewLogger())

	stats, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Expired)
	assert.Zero(t, stats.BlobsDeleted)
}

func TestSweep_BlobFailureStillSoftDeletes(t *testing.T) {
	atts := newFakeAttachmentStorage(&models.Attachment{
		ID:          "att_1",
		ChatName:    "FP-1",
		OriginalURL: "https://blob.test/originals/att_1",
		PreviewURL:  "https://blob.test/previews/att_1.jpg",
	})
	blobs := newFakeBlobStore()
	blobs.failURLs["https://blob.test/originals/att_1"] = true
	svc := NewService(atts, blobs, arbor.NewLogger())

	stats, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.BlobsDeleted, "the preview blob still goes")

	saved := atts.saved["att_1"]
	require.NotNil(t, saved)
	require.NotNil(t, saved.DeletedAt, "a stuck blob must not wedge the attachment in the expired set")
}

func TestSweep_CancelledContextStopsEarly(t *testing.T) {
	atts := newFakeAttachmentStorage(
		&models.Attachment{ID: "att_1", ChatName: "FP-1"},
		&models.Attachment{ID: "att_2", ChatName: "FP-1"},
	)
	svc := NewService(atts, newFakeBlobStore(), arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, atts.saved)
}
