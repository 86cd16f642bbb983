package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db           *BadgerDB
	site         interfaces.SiteStorage
	page         interfaces.PageStorage
	section      interfaces.SectionStorage
	reference    interfaces.ReferenceStorage
	conversation interfaces.ConversationStorage
	message      interfaces.MessageStorage
	attachment   interfaces.AttachmentStorage
	cronLock     interfaces.CronLockStorage
	kv           interfaces.KeyValueStorage
	logs         interfaces.LogStorage
	logger       arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:           db,
		site:         NewSiteStorage(db, logger),
		page:         NewPageStorage(db, logger),
		section:      NewSectionStorage(db, logger),
		reference:    NewReferenceStorage(db, logger),
		conversation: NewConversationStorage(db, logger),
		message:      NewMessageStorage(db, logger),
		attachment:   NewAttachmentStorage(db, logger),
		cronLock:     NewCronLockStorage(db, logger),
		kv:           NewKVStorage(db, logger),
		logs:         NewLogStorage(db, logger),
		logger:       logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

func (m *Manager) SiteStorage() interfaces.SiteStorage                 { return m.site }
func (m *Manager) PageStorage() interfaces.PageStorage                 { return m.page }
func (m *Manager) SectionStorage() interfaces.SectionStorage           { return m.section }
func (m *Manager) ReferenceStorage() interfaces.ReferenceStorage       { return m.reference }
func (m *Manager) ConversationStorage() interfaces.ConversationStorage { return m.conversation }
func (m *Manager) MessageStorage() interfaces.MessageStorage           { return m.message }
func (m *Manager) AttachmentStorage() interfaces.AttachmentStorage     { return m.attachment }
func (m *Manager) CronLockStorage() interfaces.CronLockStorage         { return m.cronLock }
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage         { return m.kv }
func (m *Manager) LogStorage() interfaces.LogStorage                   { return m.logs }

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
