package badger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB owns the badgerhold store shared by every storage implementation
// in this package. One instance per process; stores hand out typed views
// over the same underlying database.
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	path   string
}

// NewBadgerDB opens (and if configured, first wipes) the database at the
// configured path, creating parent directories as needed.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		if err := resetDatabase(logger, config.Path); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // badger's own logger is noisy; arbor covers it

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database at %s: %w", config.Path, err)
	}
	logger.Debug().Str("path", config.Path).Msg("Badger database opened")

	return &BadgerDB{store: store, logger: logger, path: config.Path}, nil
}

func resetDatabase(logger arbor.ILogger, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	logger.Warn().Str("path", path).Msg("reset_on_startup set, deleting existing database")
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("reset database at %s: %w", path, err)
	}
	return nil
}

// Store exposes the underlying badgerhold store to the typed storages.
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	b.logger.Debug().Str("path", b.path).Msg("Closing Badger database")
	return b.store.Close()
}
