package crawler

import (
	"net/url"
	"strings"
	"time"
)

// Refresh cadences assigned by URL shape. Volatile commercial pages are
// re-fetched daily; everything else at the slow default.
const (
	RefreshDaily   = 24 * time.Hour
	RefreshDefault = 480 * time.Hour
)

// volatilePathMarkers identify pages whose content changes often enough to
// warrant the daily cadence.
var volatilePathMarkers = []string{
	"pricing", "price", "shipping", "delivery", "returns",
	"policy", "policies", "legal", "terms",
}

// RefreshIntervalFor assigns a refresh cadence from the URL's path shape.
// Unparseable URLs get the slow default.
func RefreshIntervalFor(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RefreshDefault
	}

	path := strings.ToLower(u.Path)
	for _, marker := range volatilePathMarkers {
		if strings.Contains(path, marker) {
			return RefreshDaily
		}
	}
	return RefreshDefault
}
