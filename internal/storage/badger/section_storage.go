package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SectionStorage implements the SectionStorage interface for Badger.
// Nearest-neighbor queries are a brute-force scan ordered by L2 distance;
// the corpus is small enough (thousands of sections) that this is the
// store's distance operator.
type SectionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSectionStorage creates a new SectionStorage instance
func NewSectionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SectionStorage {
	return &SectionStorage{db: db, logger: logger}
}

func (s *SectionStorage) SaveSections(ctx context.Context, sections []*models.Section) error {
	now := time.Now()
	for _, sec := range sections {
		if sec.ID == "" {
			return fmt.Errorf("section ID is required")
		}
		if sec.CreatedAt.IsZero() {
			sec.CreatedAt = now
		}
		if err := s.db.Store().Upsert(sec.ID, sec); err != nil {
			return fmt.Errorf("failed to save section %s: %w", sec.ID, err)
		}
	}
	return nil
}

func (s *SectionStorage) DeleteSectionsByPage(ctx context.Context, pageID string) error {
	err := s.db.Store().DeleteMatching(&models.Section{}, badgerhold.Where("PageID").Eq(pageID))
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete sections for page %s: %w", pageID, err)
	}
	return nil
}

func (s *SectionStorage) GetSectionsByPage(ctx context.Context, pageID string) ([]*models.Section, error) {
	var sections []models.Section
	err := s.db.Store().Find(&sections, badgerhold.Where("PageID").Eq(pageID))
	if err != nil {
		return nil, fmt.Errorf("failed to get sections for page %s: %w", pageID, err)
	}

	sort.Slice(sections, func(i, j int) bool { return sections[i].Index < sections[j].Index })

	out := make([]*models.Section, len(sections))
	for i := range sections {
		out[i] = &sections[i]
	}
	return out, nil
}

func (s *SectionStorage) NearestSections(ctx context.Context, query []float32, limit int, domains []string) ([]*models.SectionMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	var bhQuery *badgerhold.Query
	if len(domains) > 0 {
		keys := make([]interface{}, len(domains))
		for i, d := range domains {
			keys[i] = d
		}
		bhQuery = badgerhold.Where("SiteDomain").In(keys...)
	}

	var sections []models.Section
	if err := s.db.Store().Find(&sections, bhQuery); err != nil {
		return nil, fmt.Errorf("failed to scan sections: %w", err)
	}

	matches := make([]*models.SectionMatch, 0, len(sections))
	for i := range sections {
		matches = append(matches, &models.SectionMatch{
			Section:  &sections[i],
			Distance: l2Distance(query, sections[i].Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *SectionStorage) CountSections(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Section{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count sections: %w", err)
	}
	return int(count), nil
}
