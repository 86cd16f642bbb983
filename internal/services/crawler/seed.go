package crawler

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/extract"
	"github.com/ternarybob/facet/internal/services/policy"
)

// SeedStats summarizes one seed (discovery) run.
type SeedStats struct {
	Sources          int  `json:"sources"`
	PagesVisited     int  `json:"pages_visited"`
	PagesDiscovered  int  `json:"pages_discovered"` // New Page rows created
	LinksSkipped     int  `json:"links_skipped"`    // Rejected by policy or robots
	Errors           int  `json:"errors"`
	StoppedByTimeout bool `json:"stopped_by_timeout"`
}

// Seeder runs the discovery pass: BFS from each source's start URLs,
// creating Page rows for newly found URLs. It never embeds content; the
// ingest pass picks up discovered pages via next_fetch_at.
type Seeder struct {
	config  *common.CrawlerConfig
	fetcher *Fetcher
	extract *extract.Extractor
	policy  *policy.Engine
	robots  *policy.RobotsCache
	sites   interfaces.SiteStorage
	pages   interfaces.PageStorage
	logger  arbor.ILogger
}

// NewSeeder creates a seeder over the configured sources.
func NewSeeder(cfg *common.CrawlerConfig, fetcher *Fetcher, extractor *extract.Extractor,
	policyEngine *policy.Engine, robots *policy.RobotsCache,
	sites interfaces.SiteStorage, pages interfaces.PageStorage, logger arbor.ILogger) *Seeder {
	return &Seeder{
		config:  cfg,
		fetcher: fetcher,
		extract: extractor,
		policy:  policyEngine,
		robots:  robots,
		sites:   sites,
		pages:   pages,
		logger:  logger,
	}
}

// Seed crawls every configured source breadth-first within the wall-clock
// budget. Per-URL failures are counted and skipped, never fatal.
func (s *Seeder) Seed(ctx context.Context) (*SeedStats, error) {
	deadline := time.Now().Add(s.config.SeedMaxDuration)
	stats := &SeedStats{}
	start := time.Now()

	for i := range s.config.Sources {
		if time.Now().After(deadline) {
			stats.StoppedByTimeout = true
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		source := &s.config.Sources[i]
		stats.Sources++
		s.seedSource(ctx, source, deadline, stats)
	}

	s.logger.Info().
		Int("sources", stats.Sources).
		Int("pages_visited", stats.PagesVisited).
		Int("pages_discovered", stats.PagesDiscovered).
		Int("links_skipped", stats.LinksSkipped).
		Int("errors", stats.Errors).
		Bool("stopped_by_timeout", stats.StoppedByTimeout).
		Dur("duration", time.Since(start)).
		Msg("Seed pass completed")

	return stats, nil
}

func (s *Seeder) seedSource(ctx context.Context, source *common.SourceConfig, deadline time.Time, stats *SeedStats) {
	if err := s.upsertSite(ctx, source); err != nil {
		s.logger.Warn().Err(err).Str("domain", source.Domain).Msg("Failed to upsert site")
		stats.Errors++
		return
	}

	rules := s.robotsRules(ctx, source.Domain)

	// BFS queue of canonical URLs; visited guards against re-queueing.
	queue := make([]string, 0, len(source.StartURLs))
	visited := make(map[string]bool)
	for _, raw := range source.StartURLs {
		canonical, err := policy.Canonicalize(raw)
		if err != nil {
			stats.Errors++
			continue
		}
		if !visited[canonical] {
			visited[canonical] = true
			queue = append(queue, canonical)
		}
	}

	pagesVisited := 0
	for len(queue) > 0 {
		if time.Now().After(deadline) {
			stats.StoppedByTimeout = true
			return
		}
		if ctx.Err() != nil {
			return
		}
		if s.config.MaxPagesPerSource > 0 && pagesVisited >= s.config.MaxPagesPerSource {
			s.logger.Debug().
				Str("domain", source.Domain).
				Int("max_pages", s.config.MaxPagesPerSource).
				Msg("Source page cap reached")
			return
		}

		current := queue[0]
		queue = queue[1:]

		links, err := s.visit(ctx, source, current, rules)
		pagesVisited++
		stats.PagesVisited++
		if err != nil {
			s.logger.Warn().Err(err).Str("url", current).Msg("Seed visit failed")
			stats.Errors++
			continue
		}

		created, newLinks, skipped := s.recordLinks(ctx, source, links, visited, rules)
		stats.PagesDiscovered += created
		stats.LinksSkipped += skipped
		queue = append(queue, newLinks...)
	}
}

// visit fetches one page, ensures its Page row exists, and returns the
// outbound links found on it.
func (s *Seeder) visit(ctx context.Context, source *common.SourceConfig, canonical string, rules *policy.RobotsRules) ([]string, error) {
	result, err := s.fetcher.Fetch(ctx, canonical)
	if err != nil {
		return nil, err
	}

	if err := s.ensurePage(ctx, source, canonical, result.StatusCode); err != nil {
		return nil, err
	}

	if result.Body == "" {
		return nil, nil
	}

	extracted, err := s.extract.HTMLToText(result.Body, canonical)
	if err != nil {
		return nil, err
	}
	return extracted.Links, nil
}

// recordLinks filters discovered links through policy and robots, creates
// Page rows for new ones, and returns (created, queueable, skipped).
func (s *Seeder) recordLinks(ctx context.Context, source *common.SourceConfig, links []string, visited map[string]bool, rules *policy.RobotsRules) (int, []string, int) {
	created := 0
	skipped := 0
	var queueable []string

	for _, link := range links {
		canonical, err := policy.Canonicalize(link)
		if err != nil {
			skipped++
			continue
		}
		if visited[canonical] {
			continue
		}
		visited[canonical] = true

		if !s.policy.IsAllowed(canonical, source) {
			skipped++
			continue
		}
		if rules != nil && !s.allowedByRobots(canonical, rules) {
			skipped++
			continue
		}

		existing, err := s.pages.GetPageByURL(ctx, source.Domain, canonical)
		if err != nil && !common.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("url", canonical).Msg("Page lookup failed")
			continue
		}
		if existing == nil {
			if err := s.createPage(ctx, source, canonical); err != nil {
				s.logger.Warn().Err(err).Str("url", canonical).Msg("Failed to create page")
				continue
			}
			created++
		}
		queueable = append(queueable, canonical)
	}
	return created, queueable, skipped
}

// ensurePage creates the Page row for a visited start URL if it does not
// exist yet, and stamps last-seen on one that does.
func (s *Seeder) ensurePage(ctx context.Context, source *common.SourceConfig, canonical string, status int) error {
	existing, err := s.pages.GetPageByURL(ctx, source.Domain, canonical)
	if err != nil && !common.IsNotFound(err) {
		return err
	}
	now := time.Now()
	if existing == nil {
		return s.createPage(ctx, source, canonical)
	}
	existing.LastSeenAt = now
	existing.LastStatus = status
	existing.UpdatedAt = now
	return s.pages.UpsertPage(ctx, existing)
}

func (s *Seeder) createPage(ctx context.Context, source *common.SourceConfig, canonical string) error {
	now := time.Now()
	page := &models.Page{
		ID:              common.NewPageID(),
		SiteDomain:      source.Domain,
		URL:             canonical,
		CanonicalURL:    canonical,
		RefreshInterval: RefreshIntervalFor(canonical),
		NextFetchAt:     now, // Immediately due for the next ingest pass
		LastSeenAt:      now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s.pages.UpsertPage(ctx, page)
}

func (s *Seeder) upsertSite(ctx context.Context, source *common.SourceConfig) error {
	siteType := models.SiteTypeExternal
	if source.Type == string(models.SiteTypeWix) {
		siteType = models.SiteTypeWix
	}
	now := time.Now()

	existing, err := s.sites.GetSite(ctx, source.Domain)
	if err != nil && !common.IsNotFound(err) {
		return err
	}

	site := &models.Site{
		Domain:    source.Domain,
		Name:      source.Name,
		Type:      siteType,
		Language:  source.Language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		site.CreatedAt = existing.CreatedAt
	}
	return s.sites.UpsertSite(ctx, site)
}

// robotsRules returns the cached robots rules for a domain, fetching and
// parsing on cache miss. Returns nil when robots enforcement is disabled.
func (s *Seeder) robotsRules(ctx context.Context, domain string) *policy.RobotsRules {
	if !s.config.FollowRobotsTxt {
		return nil
	}
	if rules := s.robots.Get(domain); rules != nil {
		return rules
	}
	body := s.fetcher.FetchRobots(ctx, domain)
	rules := policy.ParseRobots(body, s.config.UserAgent)
	s.robots.Set(domain, rules)
	return rules
}

func (s *Seeder) allowedByRobots(canonical string, rules *policy.RobotsRules) bool {
	u, err := urlPath(canonical)
	if err != nil {
		return false
	}
	return rules.Allows(u)
}
