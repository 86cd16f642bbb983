// -----------------------------------------------------------------------
// URL Policy Engine - decides whether a URL may be fetched or queued
// -----------------------------------------------------------------------

package policy

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
)

// defaultDenySubstrings rejects transactional and account surfaces that
// never carry useful knowledge. Merged with per-source additions.
var defaultDenySubstrings = []string{
	"/account", "/login", "/logout", "/signin", "/signup", "/register",
	"/cart", "/checkout", "/basket", "/order", "/payment",
	"/search", "/wishlist", "/compare", "/admin", "/wp-admin",
}

// deniedExtensions are file types the extractor cannot turn into text.
var deniedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".css": true, ".js": true, ".json": true,
	".xml": true, ".pdf": true, ".zip": true, ".gz": true, ".tar": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".webm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true,
	".pptx": true,
}

// trackingParams are query parameters stripped during canonicalization so
// URL variants merge into one Page key.
var trackingParams = map[string]bool{
	"gclid": true, "fbclid": true, "msclkid": true, "mc_eid": true,
	"mc_cid": true, "ref": true, "igshid": true, "yclid": true,
}

// Engine applies the per-source allow/deny rules.
type Engine struct {
	logger arbor.ILogger
}

// NewEngine creates a new policy engine
func NewEngine(logger arbor.ILogger) *Engine {
	return &Engine{logger: logger}
}

// IsAllowed reports whether the URL may be fetched for the given source.
// Rejection order: scheme, hostname, extension, allowed prefixes, deny
// substrings.
func (e *Engine) IsAllowed(rawURL string, source *common.SourceConfig) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if !strings.EqualFold(u.Hostname(), source.Domain) {
		return false
	}

	path := strings.ToLower(u.Path)
	if hasDeniedExtension(path) {
		return false
	}

	prefixes := source.AllowedPrefixes
	if len(prefixes) == 0 {
		prefixes = inferPrefixes(source.StartURLs)
	}
	if len(prefixes) > 0 && !matchesAnyPrefix(path, prefixes) {
		return false
	}

	for _, deny := range defaultDenySubstrings {
		if strings.Contains(path, deny) {
			return false
		}
	}
	for _, deny := range source.DenySubstrings {
		if deny != "" && strings.Contains(path, strings.ToLower(deny)) {
			return false
		}
	}

	return true
}

// Canonicalize normalizes a URL into the Page key: lowercased host,
// fragment stripped, tracking parameters removed, remaining query
// parameters sorted.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	q := u.Query()
	kept := url.Values{}
	for key, vals := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			continue
		}
		for _, v := range vals {
			kept.Add(key, v)
		}
	}

	if len(kept) == 0 {
		u.RawQuery = ""
	} else {
		keys := make([]string, 0, len(kept))
		for k := range kept {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			vals := kept[k]
			sort.Strings(vals)
			for _, v := range vals {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	// Trailing slash on the root path only
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

func hasDeniedExtension(path string) bool {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx < strings.LastIndex(path, "/") {
		return false
	}
	return deniedExtensions[path[idx:]]
}

func matchesAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// inferPrefixes derives allowed path prefixes from the source's start
// URLs when the config does not set them explicitly. A start URL at the
// site root allows the whole site.
func inferPrefixes(startURLs []string) []string {
	var prefixes []string
	for _, raw := range startURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		path := strings.ToLower(u.Path)
		if path == "" || path == "/" {
			return nil // root start URL allows everything on the domain
		}
		prefixes = append(prefixes, path)
	}
	return prefixes
}
