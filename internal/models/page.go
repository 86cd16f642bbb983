package models

import "time"

// Exclusion reasons recorded on pages that should no longer be fetched.
const (
	ExcludedHTTP404 = "http_404"
	ExcludedNonHTML = "non_html"
)

// Page represents one URL within a Site. Exactly one Page row exists per
// (site, canonical URL). Pages are never hard-deleted, only excluded.
type Page struct {
	ID           string    `json:"id" badgerhold:"key"`
	SiteDomain   string    `json:"site_domain" badgerhold:"index"`
	URL          string    `json:"url" badgerhold:"index"` // Canonicalized URL, unique per site
	CanonicalURL string    `json:"canonical_url"`
	Title        string    `json:"title"`
	LastStatus   int       `json:"last_status"`  // HTTP status of last fetch
	ContentHash  string    `json:"content_hash"` // Hash of last successfully extracted text
	FetchedAt    time.Time `json:"fetched_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`

	// Scheduling
	RefreshInterval time.Duration `json:"refresh_interval"`
	NextFetchAt     time.Time     `json:"next_fetch_at" badgerhold:"index"` // Zero value means immediately due
	ExcludedReason  string        `json:"excluded_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Due reports whether the page is eligible for the ingest pass at t.
func (p *Page) Due(t time.Time) bool {
	return p.ExcludedReason == "" && !p.NextFetchAt.After(t)
}
