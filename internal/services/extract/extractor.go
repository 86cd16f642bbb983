// -----------------------------------------------------------------------
// Content Extractor - HTML to normalized plain text with title and links
// -----------------------------------------------------------------------

package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// minMainContentChars is the threshold below which a candidate main
// region is considered boilerplate and the full document is used instead.
const minMainContentChars = 200

// Extracted is the result of normalizing one HTML document.
type Extracted struct {
	Title    string   `json:"title"`
	Text     string   `json:"text"`     // Title-prefixed normalized plain text
	Markdown string   `json:"markdown"` // Main content with headings and lists preserved
	Links    []string `json:"links"`
	Images   []string `json:"images"`
}

// Extractor converts raw HTML into normalized plain text suitable for
// hashing and chunking.
type Extractor struct {
	logger arbor.ILogger
}

// NewExtractor creates a new content extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

var whitespaceRe = regexp.MustCompile(`[ \t]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// HTMLToText extracts the title and normalized main-content text from an
// HTML document, and resolves outbound links/images against baseURL.
func (e *Extractor) HTMLToText(html string, baseURL string) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, svg, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	main := e.mainContent(doc)
	text := normalizeWhitespace(nodeText(main))
	if title != "" {
		text = title + "\n\n" + text
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	result := &Extracted{
		Title:    title,
		Text:     text,
		Markdown: e.toMarkdown(main, baseURL),
		Links:    e.extractLinks(doc, base),
		Images:   e.extractImages(doc, base),
	}

	e.logger.Debug().
		Str("base_url", baseURL).
		Str("title", title).
		Int("text_len", len(result.Text)).
		Int("links", len(result.Links)).
		Msg("HTML extracted")

	return result, nil
}

// mainContent prefers <main>, then <article>, then the largest
// substantial <section>, falling back to the full body. This skips
// boilerplate-only regions while tolerating markup variance across sites.
func (e *Extractor) mainContent(doc *goquery.Document) *goquery.Selection {
	if main := doc.Find("main").First(); main.Length() > 0 {
		if len(normalizeWhitespace(nodeText(main))) > minMainContentChars {
			return main
		}
	}

	if article := doc.Find("article").First(); article.Length() > 0 {
		if len(normalizeWhitespace(nodeText(article))) > minMainContentChars {
			return article
		}
	}

	var largest *goquery.Selection
	largestLen := 0
	doc.Find("section").Each(func(i int, s *goquery.Selection) {
		if l := len(s.Text()); l > largestLen {
			largest = s
			largestLen = l
		}
	})
	if largest != nil && largestLen > minMainContentChars {
		return largest
	}

	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// toMarkdown renders the main content region as markdown so headings and
// lists survive into the sections the retriever hands the model.
func (e *Extractor) toMarkdown(sel *goquery.Selection, baseURL string) string {
	domain := ""
	if u, err := url.Parse(baseURL); err == nil {
		domain = u.Scheme + "://" + u.Host
	}

	markdown := md.NewConverter(domain, true, nil).Convert(sel)
	return strings.TrimSpace(markdown)
}

// nodeText renders a selection as plain text with paragraph boundaries
// preserved as newlines.
func nodeText(sel *goquery.Selection) string {
	var sb strings.Builder
	blockTags := map[string]bool{
		"p": true, "div": true, "li": true, "br": true, "tr": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
	}

	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(i int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				sb.WriteString(c.Text())
				return
			}
			tag := goquery.NodeName(c)
			walk(c)
			if blockTags[tag] {
				sb.WriteString("\n")
			}
		})
	}
	walk(sel)

	return normalizeWhitespace(sb.String())
}

// normalizeWhitespace collapses runs of spaces and blank lines while
// keeping single newlines as paragraph boundaries.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = whitespaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func (e *Extractor) extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		if shouldSkipLink(href) {
			return
		}
		resolved := resolveURL(href, base)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}

func (e *Extractor) extractImages(doc *goquery.Document, base *url.URL) []string {
	var images []string
	seen := make(map[string]bool)

	doc.Find("img[src]").Each(func(i int, s *goquery.Selection) {
		src, exists := s.Attr("src")
		if !exists || src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		resolved := resolveURL(src, base)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		images = append(images, resolved)
	})

	return images
}

// shouldSkipLink filters javascript:, mailto:, tel:, and fragment-only links
func shouldSkipLink(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "#")
}

// resolveURL resolves href against base and strips the fragment.
func resolveURL(href string, base *url.URL) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
