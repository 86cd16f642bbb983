package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PageStorage implements the PageStorage interface for Badger
type PageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPageStorage creates a new PageStorage instance
func NewPageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PageStorage {
	return &PageStorage{db: db, logger: logger}
}

func (s *PageStorage) UpsertPage(ctx context.Context, page *models.Page) error {
	if page.ID == "" {
		return fmt.Errorf("page ID is required")
	}
	if page.SiteDomain == "" || page.URL == "" {
		return fmt.Errorf("page site domain and URL are required")
	}

	now := time.Now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now

	if err := s.db.Store().Upsert(page.ID, page); err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}
	return nil
}

func (s *PageStorage) GetPage(ctx context.Context, id string) (*models.Page, error) {
	var page models.Page
	if err := s.db.Store().Get(id, &page); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("page", id)
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

func (s *PageStorage) GetPageByURL(ctx context.Context, siteDomain, url string) (*models.Page, error) {
	var pages []models.Page
	err := s.db.Store().Find(&pages, badgerhold.Where("SiteDomain").Eq(siteDomain).And("URL").Eq(url))
	if err != nil {
		return nil, fmt.Errorf("failed to find page: %w", err)
	}
	if len(pages) == 0 {
		return nil, common.NewNotFoundError("page", siteDomain+" "+url)
	}
	return &pages[0], nil
}

// ClaimDue claims up to limit due pages inside one Badger transaction.
// The NextFetchAt bump is the concurrency-safety mechanism: a second
// ingest run executing the same query will no longer see the claimed
// rows as due. A run that outlives the claim window can still be
// double-claimed; that race is tolerated because re-ingesting a page is
// idempotent.
func (s *PageStorage) ClaimDue(ctx context.Context, limit int, now time.Time, claimWindow time.Duration) ([]*models.Page, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*models.Page
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		var due []models.Page
		query := badgerhold.Where("NextFetchAt").Le(now).And("ExcludedReason").Eq("")
		if err := s.db.Store().TxFind(txn, &due, query); err != nil {
			return fmt.Errorf("failed to query due pages: %w", err)
		}

		sort.Slice(due, func(i, j int) bool {
			return due[i].NextFetchAt.Before(due[j].NextFetchAt)
		})
		if len(due) > limit {
			due = due[:limit]
		}

		for i := range due {
			page := due[i]
			page.NextFetchAt = now.Add(claimWindow)
			page.UpdatedAt = now
			if err := s.db.Store().TxUpdate(txn, page.ID, &page); err != nil {
				return fmt.Errorf("failed to claim page %s: %w", page.ID, err)
			}
			claimed = append(claimed, &page)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int("claimed", len(claimed)).Msg("Claimed due pages")
	return claimed, nil
}

func (s *PageStorage) CountPages(ctx context.Context, siteDomain string) (int, error) {
	var query *badgerhold.Query
	if siteDomain != "" {
		query = badgerhold.Where("SiteDomain").Eq(siteDomain)
	}
	count, err := s.db.Store().Count(&models.Page{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return int(count), nil
}
