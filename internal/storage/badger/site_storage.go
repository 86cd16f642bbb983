package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SiteStorage implements the SiteStorage interface for Badger
type SiteStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSiteStorage creates a new SiteStorage instance
func NewSiteStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SiteStorage {
	return &SiteStorage{db: db, logger: logger}
}

func (s *SiteStorage) UpsertSite(ctx context.Context, site *models.Site) error {
	if site.Domain == "" {
		return fmt.Errorf("site domain is required")
	}

	now := time.Now()
	if site.CreatedAt.IsZero() {
		var existing models.Site
		if err := s.db.Store().Get(site.Domain, &existing); err == nil {
			site.CreatedAt = existing.CreatedAt
		} else {
			site.CreatedAt = now
		}
	}
	site.UpdatedAt = now

	if err := s.db.Store().Upsert(site.Domain, site); err != nil {
		return fmt.Errorf("failed to upsert site: %w", err)
	}
	return nil
}

func (s *SiteStorage) GetSite(ctx context.Context, domain string) (*models.Site, error) {
	var site models.Site
	if err := s.db.Store().Get(domain, &site); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("site", domain)
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &site, nil
}

func (s *SiteStorage) ListSites(ctx context.Context) ([]*models.Site, error) {
	var sites []models.Site
	if err := s.db.Store().Find(&sites, nil); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	out := make([]*models.Site, len(sites))
	for i := range sites {
		out[i] = &sites[i]
	}
	return out, nil
}
