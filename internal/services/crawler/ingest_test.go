package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/extract"
)

type ingestFixture struct {
	srv      *httptest.Server
	domain   string
	ingester *Ingester
	pages    *fakePageStorage
	sections *fakeSectionStorage
	embedder *fakeEmbedder
	visits   atomic.Int64
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	fx := &ingestFixture{
		pages:    newFakePageStorage(),
		sections: newFakeSectionStorage(),
		embedder: &fakeEmbedder{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/materials", func(w http.ResponseWriter, r *http.Request) {
		fx.visits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Materials</title></head><body><main>
			<h1>Materials</h1>
			<p>We fabricate quartz and granite worktops cut to measure, with a wide range of edge profiles and finishes available on request.</p>
		</main></body></html>`)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/brochure", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	fx.srv = httptest.NewServer(mux)
	t.Cleanup(fx.srv.Close)

	u, err := url.Parse(fx.srv.URL)
	require.NoError(t, err)
	fx.domain = u.Hostname()

	cfg := &common.CrawlerConfig{
		UserAgent:         "facet-test",
		RequestTimeout:    5 * time.Second,
		RequestDelay:      time.Millisecond,
		MaxPagesPerIngest: 10,
		IngestMaxDuration: 30 * time.Second,
		ClaimWindow:       20 * time.Minute,
		ChunkMaxChars:     2000,
		ChunkMinChars:     50,
	}
	logger := arbor.NewLogger()
	fx.ingester = NewIngester(cfg, NewFetcher(cfg, logger), extract.NewExtractor(logger),
		fx.embedder, fx.pages, fx.sections, logger)
	return fx
}

func (fx *ingestFixture) addPage(t *testing.T, id, path string) {
	t.Helper()
	require.NoError(t, fx.pages.UpsertPage(context.Background(), &models.Page{
		ID:              id,
		SiteDomain:      fx.domain,
		URL:             fx.srv.URL + path,
		RefreshInterval: 24 * time.Hour,
	}))
}

func TestIngest_EmbedsChangedPage(t *testing.T) {
	fx := newIngestFixture(t)
	fx.addPage(t, "page_materials", "/materials")

	stats, err := fx.ingester.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PagesClaimed)
	assert.Equal(t, 1, stats.PagesEmbedded)
	assert.Equal(t, stats.SectionsWritten, len(fx.sections.sections))
	assert.NotZero(t, stats.SectionsWritten)
	assert.Zero(t, stats.Errors)

	page := fx.pages.pages["page_materials"]
	assert.Equal(t, "Materials", page.Title)
	assert.NotEmpty(t, page.ContentHash)
	assert.Equal(t, http.StatusOK, page.LastStatus)
	assert.True(t, page.NextFetchAt.After(time.Now().Add(23*time.Hour)), "rescheduled by refresh interval")

	secs, err := fx.sections.GetSectionsByPage(context.Background(), "page_materials")
	require.NoError(t, err)
	require.NotEmpty(t, secs)
	assert.Contains(t, secs[0].Content, "# Materials", "sections carry the markdown rendering")
	assert.Equal(t, "Materials", secs[0].Title, "sections carry the page title for retrieval provenance")
	assert.Equal(t, fx.domain, secs[0].SiteDomain)
	assert.Equal(t, "fake-embed", secs[0].Model)
	assert.Equal(t, 2, secs[0].Dimension)
}

func TestIngest_UnchangedPageOnlyReschedules(t *testing.T) {
	fx := newIngestFixture(t)
	fx.addPage(t, "page_materials", "/materials")
	ctx := context.Background()

	_, err := fx.ingester.Ingest(ctx)
	require.NoError(t, err)
	embedCalls := fx.embedder.calls

	// Make the page due again and rerun against identical content.
	fx.pages.pages["page_materials"].NextFetchAt = time.Now().Add(-time.Minute)
	fx.pages.pages["page_materials"].LastSeenAt = time.Now().Add(-48 * time.Hour)
	stats, err := fx.ingester.Ingest(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PagesUnchanged)
	assert.Zero(t, stats.PagesEmbedded)
	assert.Equal(t, embedCalls, fx.embedder.calls, "unchanged content is not re-embedded")
	assert.Equal(t, int64(2), fx.visits.Load())
	assert.WithinDuration(t, time.Now(), fx.pages.pages["page_materials"].LastSeenAt, 5*time.Second,
		"a live page moves its freshness marker even without re-embedding")
}

func TestIngest_404ExcludesPageButKeepsSections(t *testing.T) {
	fx := newIngestFixture(t)
	fx.addPage(t, "page_gone", "/gone")
	require.NoError(t, fx.sections.SaveSections(context.Background(), []*models.Section{
		{ID: "sec_old", PageID: "page_gone", SiteDomain: fx.domain, Content: "stale but useful"},
	}))

	stats, err := fx.ingester.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PagesExcluded)
	assert.Equal(t, models.ExcludedHTTP404, fx.pages.pages["page_gone"].ExcludedReason)
	assert.Len(t, fx.sections.sections, 1, "stale knowledge beats a gap until the next seed run")
}

func TestIngest_NonHTMLExcluded(t *testing.T) {
	fx := newIngestFixture(t)
	fx.addPage(t, "page_pdf", "/brochure")

	stats, err := fx.ingester.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PagesExcluded)
	assert.Equal(t, models.ExcludedNonHTML, fx.pages.pages["page_pdf"].ExcludedReason)
}

func TestIngest_ServerErrorBacksOff(t *testing.T) {
	fx := newIngestFixture(t)
	fx.addPage(t, "page_flaky", "/flaky")

	stats, err := fx.ingester.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	page := fx.pages.pages["page_flaky"]
	assert.Empty(t, page.ExcludedReason, "transient failures never exclude a page")
	assert.True(t, page.NextFetchAt.After(time.Now().Add(3*time.Hour)), "short backoff instead of the refresh interval")
	assert.Equal(t, http.StatusServiceUnavailable, page.LastStatus)
}

func TestIngest_NothingDue(t *testing.T) {
	fx := newIngestFixture(t)
	require.NoError(t, fx.pages.UpsertPage(context.Background(), &models.Page{
		ID:          "page_future",
		SiteDomain:  fx.domain,
		URL:         fx.srv.URL + "/materials",
		NextFetchAt: time.Now().Add(time.Hour),
	}))

	stats, err := fx.ingester.Ingest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PagesClaimed)
	assert.Zero(t, fx.visits.Load())
}
