package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 2 << 20 // 2 MiB cap on fetched HTML

// FetchResult carries one HTTP fetch outcome. Body is only populated for
// successful HTML responses.
type FetchResult struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        string
	HTML        bool
}

// Fetcher performs polite, bounded HTTP fetches with a per-domain rate
// limiter so parallel sources cannot hammer one origin.
type Fetcher struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	logger    arbor.ILogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher from the crawler config.
func NewFetcher(cfg *common.CrawlerConfig, logger arbor.ILogger) *Fetcher {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		delay:     delay,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Fetch retrieves the URL, waiting on the domain's rate limiter first.
// Non-2xx statuses are returned as a result, not an error; errors mean the
// request itself failed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if err := f.limiter(u.Hostname()).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")

	result := &FetchResult{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        isHTML,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && isHTML {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read body for %s: %w", rawURL, err)
		}
		result.Body = string(body)
	}

	f.logger.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Bool("html", isHTML).
		Dur("duration", time.Since(start)).
		Msg("Fetched URL")

	return result, nil
}

// FetchRobots retrieves the domain's robots.txt body, or an empty string
// when it is absent or unreachable. Robots failures never block crawling.
func (f *Fetcher) FetchRobots(ctx context.Context, domain string) string {
	robotsURL := fmt.Sprintf("https://%s/robots.txt", domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug().Str("domain", domain).Err(err).Msg("robots.txt fetch failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ""
	}
	return string(body)
}

func (f *Fetcher) limiter(domain string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	lim, ok := f.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Every(f.delay), 1)
		f.limiters[domain] = lim
	}
	return lim
}
