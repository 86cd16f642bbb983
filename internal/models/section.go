package models

import "time"

// Section is one embedded chunk of a page's extracted text, the unit of
// retrieval for the web corpus. All sections of a page are replaced
// together whenever the page's overall content hash changes.
type Section struct {
	ID          string    `json:"id" badgerhold:"key"`
	PageID      string    `json:"page_id" badgerhold:"index"`
	SiteDomain  string    `json:"site_domain" badgerhold:"index"`
	Index       int       `json:"index"` // Stable chunk position within the page
	Title       string    `json:"title"` // Page title at embed time, carried into retrieval results
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"` // Chunk-level dedup key, unique per page
	Embedding   []float32 `json:"embedding"`
	Dimension   int       `json:"dimension"`
	Model       string    `json:"model"` // Embedding model identifier
	SourceTag   string    `json:"source_tag"`
	CreatedAt   time.Time `json:"created_at"`
}
