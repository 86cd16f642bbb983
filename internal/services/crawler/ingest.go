package crawler

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/chunker"
	"github.com/ternarybob/facet/internal/services/extract"
)

// failureBackoff delays the next attempt after a transient fetch failure,
// without disturbing the page's long-term refresh interval.
const failureBackoff = 4 * time.Hour

// IngestStats summarizes one ingest (refresh + embed) run.
type IngestStats struct {
	PagesClaimed     int  `json:"pages_claimed"`
	PagesUnchanged   int  `json:"pages_unchanged"`
	PagesEmbedded    int  `json:"pages_embedded"`
	PagesExcluded    int  `json:"pages_excluded"`
	SectionsWritten  int  `json:"sections_written"`
	Errors           int  `json:"errors"`
	StoppedByTimeout bool `json:"stopped_by_timeout"`
}

// Ingester runs the refresh pass: claim due pages, re-fetch, detect change
// by content hash, and re-embed only what changed.
type Ingester struct {
	config   *common.CrawlerConfig
	fetcher  *Fetcher
	extract  *extract.Extractor
	embedder interfaces.EmbeddingService
	pages    interfaces.PageStorage
	sections interfaces.SectionStorage
	logger   arbor.ILogger
}

// NewIngester creates an ingester.
func NewIngester(cfg *common.CrawlerConfig, fetcher *Fetcher, extractor *extract.Extractor,
	embedder interfaces.EmbeddingService, pages interfaces.PageStorage,
	sections interfaces.SectionStorage, logger arbor.ILogger) *Ingester {
	return &Ingester{
		config:   cfg,
		fetcher:  fetcher,
		extract:  extractor,
		embedder: embedder,
		pages:    pages,
		sections: sections,
		logger:   logger,
	}
}

// Ingest claims up to the configured batch of due pages and processes each
// within the wall-clock budget. Per-page failures get a short backoff and
// the run continues.
func (g *Ingester) Ingest(ctx context.Context) (*IngestStats, error) {
	deadline := time.Now().Add(g.config.IngestMaxDuration)
	stats := &IngestStats{}
	start := time.Now()

	claimed, err := g.pages.ClaimDue(ctx, g.config.MaxPagesPerIngest, time.Now(), g.config.ClaimWindow)
	if err != nil {
		return nil, err
	}
	stats.PagesClaimed = len(claimed)

	for _, page := range claimed {
		if time.Now().After(deadline) {
			stats.StoppedByTimeout = true
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		g.processPage(ctx, page, stats)
	}

	g.logger.Info().
		Int("pages_claimed", stats.PagesClaimed).
		Int("pages_unchanged", stats.PagesUnchanged).
		Int("pages_embedded", stats.PagesEmbedded).
		Int("pages_excluded", stats.PagesExcluded).
		Int("sections_written", stats.SectionsWritten).
		Int("errors", stats.Errors).
		Bool("stopped_by_timeout", stats.StoppedByTimeout).
		Dur("duration", time.Since(start)).
		Msg("Ingest pass completed")

	return stats, nil
}

func (g *Ingester) processPage(ctx context.Context, page *models.Page, stats *IngestStats) {
	now := time.Now()

	result, err := g.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		g.logger.Warn().Err(err).Str("url", page.URL).Msg("Ingest fetch failed")
		g.reschedule(ctx, page, now.Add(failureBackoff), 0)
		stats.Errors++
		return
	}

	page.LastStatus = result.StatusCode
	page.FetchedAt = now

	switch {
	case result.StatusCode == http.StatusNotFound || result.StatusCode == http.StatusGone:
		// The page no longer exists. Exclude it from future passes but keep
		// its sections; stale knowledge beats a gap until the next seed run.
		page.ExcludedReason = models.ExcludedHTTP404
		page.UpdatedAt = now
		if err := g.pages.UpsertPage(ctx, page); err != nil {
			g.logger.Warn().Err(err).Str("url", page.URL).Msg("Failed to exclude page")
			stats.Errors++
			return
		}
		stats.PagesExcluded++
		return

	case result.StatusCode < 200 || result.StatusCode >= 300:
		g.reschedule(ctx, page, now.Add(failureBackoff), result.StatusCode)
		stats.Errors++
		return

	case !result.HTML:
		page.ExcludedReason = models.ExcludedNonHTML
		page.UpdatedAt = now
		if err := g.pages.UpsertPage(ctx, page); err != nil {
			stats.Errors++
			return
		}
		stats.PagesExcluded++
		return
	}

	extracted, err := g.extract.HTMLToText(result.Body, page.URL)
	if err != nil {
		g.logger.Warn().Err(err).Str("url", page.URL).Msg("Extraction failed")
		g.reschedule(ctx, page, now.Add(failureBackoff), result.StatusCode)
		stats.Errors++
		return
	}

	// Markdown keeps headings and lists in the stored sections; the plain
	// text is the fallback for markup the converter cannot handle.
	content := extracted.Markdown
	if content == "" {
		content = extracted.Text
	}

	newHash := common.ContentHash(content)
	if newHash == page.ContentHash {
		// Unchanged content: the page was still observed live, so freshness
		// moves forward even though no sections are rewritten.
		page.LastSeenAt = now
		g.reschedule(ctx, page, now.Add(page.RefreshInterval), result.StatusCode)
		stats.PagesUnchanged++
		return
	}

	// The title is set before embedding so every section carries it.
	page.Title = extracted.Title
	written, err := g.reembed(ctx, page, content)
	if err != nil {
		g.logger.Warn().Err(err).Str("url", page.URL).Msg("Re-embedding failed")
		g.reschedule(ctx, page, now.Add(failureBackoff), result.StatusCode)
		stats.Errors++
		return
	}

	page.ContentHash = newHash
	page.LastSeenAt = now
	page.NextFetchAt = now.Add(page.RefreshInterval)
	page.UpdatedAt = now
	if err := g.pages.UpsertPage(ctx, page); err != nil {
		g.logger.Warn().Err(err).Str("url", page.URL).Msg("Failed to save page after embed")
		stats.Errors++
		return
	}

	stats.PagesEmbedded++
	stats.SectionsWritten += written
}

// reembed replaces all of a page's sections with freshly chunked and
// embedded content. Sections are built fully before any delete so a
// provider failure leaves the old sections intact.
func (g *Ingester) reembed(ctx context.Context, page *models.Page, text string) (int, error) {
	chunks := chunker.Split(text, chunker.Options{
		MaxChars: g.config.ChunkMaxChars,
		MinChars: g.config.ChunkMinChars,
	})
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := g.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	sections := make([]*models.Section, len(chunks))
	for i, c := range chunks {
		sections[i] = &models.Section{
			ID:          common.NewSectionID(),
			PageID:      page.ID,
			SiteDomain:  page.SiteDomain,
			Index:       c.Index,
			Title:       page.Title,
			Content:     c.Content,
			ContentHash: common.ContentHash(c.Content),
			Embedding:   embeddings[i],
			Dimension:   g.embedder.Dimension(),
			Model:       g.embedder.ModelName(),
			SourceTag:   page.SiteDomain,
			CreatedAt:   now,
		}
	}

	if err := g.sections.DeleteSectionsByPage(ctx, page.ID); err != nil {
		return 0, err
	}
	if err := g.sections.SaveSections(ctx, sections); err != nil {
		return 0, err
	}
	return len(sections), nil
}

func (g *Ingester) reschedule(ctx context.Context, page *models.Page, next time.Time, status int) {
	page.NextFetchAt = next
	if status != 0 {
		page.LastStatus = status
	}
	page.UpdatedAt = time.Now()
	if err := g.pages.UpsertPage(ctx, page); err != nil {
		g.logger.Warn().Err(err).Str("url", page.URL).Msg("Failed to reschedule page")
	}
}
