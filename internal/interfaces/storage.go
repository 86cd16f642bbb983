package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/facet/internal/models"
)

// SiteStorage - interface for crawlable origin persistence
type SiteStorage interface {
	UpsertSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, domain string) (*models.Site, error)
	ListSites(ctx context.Context) ([]*models.Site, error)
}

// PageStorage - interface for crawled page persistence and scheduling
type PageStorage interface {
	UpsertPage(ctx context.Context, page *models.Page) error
	GetPage(ctx context.Context, id string) (*models.Page, error)
	GetPageByURL(ctx context.Context, siteDomain, url string) (*models.Page, error)
	// ClaimDue atomically claims up to limit due pages ordered by due time
	// and bumps their NextFetchAt forward by claimWindow so a concurrent
	// run does not re-claim them.
	ClaimDue(ctx context.Context, limit int, now time.Time, claimWindow time.Duration) ([]*models.Page, error)
	CountPages(ctx context.Context, siteDomain string) (int, error)
}

// SectionStorage - interface for embedded web chunks, including the
// nearest-neighbor query used at retrieval time.
type SectionStorage interface {
	SaveSections(ctx context.Context, sections []*models.Section) error
	DeleteSectionsByPage(ctx context.Context, pageID string) error
	GetSectionsByPage(ctx context.Context, pageID string) ([]*models.Section, error)
	// NearestSections returns the limit sections closest to the query
	// vector, ordered by ascending distance. domains optionally restricts
	// the scan to specific site domains.
	NearestSections(ctx context.Context, query []float32, limit int, domains []string) ([]*models.SectionMatch, error)
	CountSections(ctx context.Context) (int, error)
}

// ReferenceStorage - interface for the curated knowledge base
type ReferenceStorage interface {
	UpsertDoc(ctx context.Context, doc *models.ReferenceDoc) error
	GetDoc(ctx context.Context, path string) (*models.ReferenceDoc, error)
	SaveChunks(ctx context.Context, chunks []*models.ReferenceChunk) error
	DeleteChunksByDoc(ctx context.Context, docPath string) error
	NearestChunks(ctx context.Context, query []float32, limit int) ([]*models.ReferenceMatch, error)
}

// ConversationStorage - interface for chat session persistence
type ConversationStorage interface {
	SaveConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, chatName string) (*models.Conversation, error)
	ListConversations(ctx context.Context, status models.ConversationStatus, limit int) ([]*models.Conversation, error)
}

// MessageStorage - interface for turn persistence with per-conversation
// sequencing.
type MessageStorage interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	GetMessages(ctx context.Context, chatName string) ([]*models.Message, error)
	// GetRecentMessages returns the most recent limit messages in
	// chronological order.
	GetRecentMessages(ctx context.Context, chatName string, limit int) ([]*models.Message, error)
	// MaxSequence returns the highest sequence number in the conversation,
	// 0 when it has no messages.
	MaxSequence(ctx context.Context, chatName string) (int, error)
	CountMessages(ctx context.Context, chatName string) (int, error)
}

// AttachmentStorage - interface for message attachments
type AttachmentStorage interface {
	SaveAttachment(ctx context.Context, att *models.Attachment) error
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
	GetAttachmentsByChat(ctx context.Context, chatName string) ([]*models.Attachment, error)
	// GetExpired returns attachments whose ExpiresAt has passed and which
	// have not been soft-deleted yet.
	GetExpired(ctx context.Context, now time.Time) ([]*models.Attachment, error)
}

// CronLockStorage - interface for the two-phase cron lock protocol
type CronLockStorage interface {
	// EnsureExists creates the row for taskName if absent, without
	// erroring on races.
	EnsureExists(ctx context.Context, taskName string) error
	// TryAcquire performs the atomic conditional claim. It succeeds only
	// when the stored LockedUntil is in the past and the stored WindowKey
	// differs from windowKey.
	TryAcquire(ctx context.Context, taskName, windowKey string, now time.Time, ttl time.Duration) (bool, error)
	Get(ctx context.Context, taskName string) (*models.CronLock, error)
}

// KeyValueStorage - interface for small operational key/value records,
// such as last-run stats of scheduled jobs.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, description string) error
	Delete(ctx context.Context, key string) error
}

// LogStorage - interface for immutable audit log rows
type LogStorage interface {
	AppendEmailLog(ctx context.Context, entry *models.EmailLog) error
	GetEmailLogs(ctx context.Context, chatName string) ([]*models.EmailLog, error)
	AppendWebhookLog(ctx context.Context, entry *models.WebhookLog) error
	GetWebhookLogs(ctx context.Context, chatName string) ([]*models.WebhookLog, error)
}

// StorageManager aggregates all storage interfaces behind one lifecycle.
type StorageManager interface {
	SiteStorage() SiteStorage
	PageStorage() PageStorage
	SectionStorage() SectionStorage
	ReferenceStorage() ReferenceStorage
	ConversationStorage() ConversationStorage
	MessageStorage() MessageStorage
	AttachmentStorage() AttachmentStorage
	CronLockStorage() CronLockStorage
	KeyValueStorage() KeyValueStorage
	LogStorage() LogStorage
	Close() error
}
