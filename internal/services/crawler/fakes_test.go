package crawler

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/models"
)

type fakeSiteStorage struct {
	sites map[string]*models.Site
}

func newFakeSiteStorage() *fakeSiteStorage {
	return &fakeSiteStorage{sites: make(map[string]*models.Site)}
}

func (f *fakeSiteStorage) UpsertSite(ctx context.Context, site *models.Site) error {
	copied := *site
	f.sites[site.Domain] = &copied
	return nil
}

func (f *fakeSiteStorage) GetSite(ctx context.Context, domain string) (*models.Site, error) {
	site, ok := f.sites[domain]
	if !ok {
		return nil, common.NewNotFoundError("site", domain)
	}
	copied := *site
	return &copied, nil
}

func (f *fakeSiteStorage) ListSites(ctx context.Context) ([]*models.Site, error) {
	var out []*models.Site
	for _, site := range f.sites {
		out = append(out, site)
	}
	return out, nil
}

type fakePageStorage struct {
	pages map[string]*models.Page // keyed by ID
}

func newFakePageStorage() *fakePageStorage {
	return &fakePageStorage{pages: make(map[string]*models.Page)}
}

func (f *fakePageStorage) UpsertPage(ctx context.Context, page *models.Page) error {
	copied := *page
	f.pages[page.ID] = &copied
	return nil
}

func (f *fakePageStorage) GetPage(ctx context.Context, id string) (*models.Page, error) {
	page, ok := f.pages[id]
	if !ok {
		return nil, common.NewNotFoundError("page", id)
	}
	copied := *page
	return &copied, nil
}

func (f *fakePageStorage) GetPageByURL(ctx context.Context, siteDomain, url string) (*models.Page, error) {
	for _, page := range f.pages {
		if page.SiteDomain == siteDomain && page.URL == url {
			copied := *page
			return &copied, nil
		}
	}
	return nil, common.NewNotFoundError("page", url)
}

func (f *fakePageStorage) ClaimDue(ctx context.Context, limit int, now time.Time, claimWindow time.Duration) ([]*models.Page, error) {
	var due []*models.Page
	for _, page := range f.pages {
		if page.Due(now) {
			page.NextFetchAt = now.Add(claimWindow)
			copied := *page
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakePageStorage) CountPages(ctx context.Context, siteDomain string) (int, error) {
	count := 0
	for _, page := range f.pages {
		if siteDomain == "" || page.SiteDomain == siteDomain {
			count++
		}
	}
	return count, nil
}

func (f *fakePageStorage) byURL(url string) *models.Page {
	for _, page := range f.pages {
		if page.URL == url {
			return page
		}
	}
	return nil
}

type fakeSectionStorage struct {
	sections map[string]*models.Section
	deletes  []string
}

func newFakeSectionStorage() *fakeSectionStorage {
	return &fakeSectionStorage{sections: make(map[string]*models.Section)}
}

func (f *fakeSectionStorage) SaveSections(ctx context.Context, sections []*models.Section) error {
	for _, sec := range sections {
		copied := *sec
		f.sections[sec.ID] = &copied
	}
	return nil
}

func (f *fakeSectionStorage) DeleteSectionsByPage(ctx context.Context, pageID string) error {
	f.deletes = append(f.deletes, pageID)
	for id, sec := range f.sections {
		if sec.PageID == pageID {
			delete(f.sections, id)
		}
	}
	return nil
}

func (f *fakeSectionStorage) GetSectionsByPage(ctx context.Context, pageID string) ([]*models.Section, error) {
	var out []*models.Section
	for _, sec := range f.sections {
		if sec.PageID == pageID {
			out = append(out, sec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (f *fakeSectionStorage) NearestSections(ctx context.Context, query []float32, limit int, domains []string) ([]*models.SectionMatch, error) {
	return nil, nil
}

func (f *fakeSectionStorage) CountSections(ctx context.Context) (int, error) {
	return len(f.sections), nil
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }
func (f *fakeEmbedder) Dimension() int    { return 2 }
