package models

import "time"

// SiteType distinguishes external web knowledge sources from the
// business's own hosted site.
type SiteType string

const (
	SiteTypeExternal SiteType = "external"
	SiteTypeWix      SiteType = "wix"
)

// Site represents one crawlable origin. Created on first crawl of a
// domain, updated on metadata change, never deleted.
type Site struct {
	Domain    string    `json:"domain" badgerhold:"key"`
	Name      string    `json:"name"`
	Type      SiteType  `json:"type"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
