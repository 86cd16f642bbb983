package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
)

// maxTopK caps how many results one retrieval can return regardless of the
// caller's ask. More than this just dilutes the prompt.
const maxTopK = 10

// Corpus identifies which knowledge set a retrieval targets. The two
// corpora are always queried independently, never merged into one ranking.
type Corpus string

const (
	CorpusReference Corpus = "reference"
	CorpusWeb       Corpus = "web"
)

// Result is one retrieved chunk with provenance and a similarity score in
// (0, 1], where 1 means an exact match.
type Result struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`          // Doc path or site domain
	Title   string  `json:"title,omitempty"` // Page or doc title, when known
	Score   float64 `json:"score"`
}

// Service answers nearest-neighbor queries over the embedded corpora.
type Service struct {
	config   *common.RetrievalConfig
	embedder interfaces.EmbeddingService
	sections interfaces.SectionStorage
	refs     interfaces.ReferenceStorage
	logger   arbor.ILogger
}

// NewService creates a retrieval service.
func NewService(cfg *common.RetrievalConfig, embedder interfaces.EmbeddingService,
	sections interfaces.SectionStorage, refs interfaces.ReferenceStorage, logger arbor.ILogger) *Service {
	return &Service{
		config:   cfg,
		embedder: embedder,
		sections: sections,
		refs:     refs,
		logger:   logger,
	}
}

// Retrieve embeds the query and returns the top-K nearest chunks from one
// corpus, filtered by the configured minimum score.
func (s *Service) Retrieve(ctx context.Context, query string, corpus Corpus) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	embedding, err := s.embedder.GenerateQueryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.RetrieveByVector(ctx, embedding, corpus)
}

// RetrieveByVector runs the nearest-neighbor query for a pre-computed
// embedding.
func (s *Service) RetrieveByVector(ctx context.Context, embedding []float32, corpus Corpus) ([]*Result, error) {
	topK := s.config.TopK
	if topK <= 0 || topK > maxTopK {
		topK = maxTopK
	}

	start := time.Now()
	var results []*Result
	switch corpus {
	case CorpusReference:
		matches, err := s.refs.NearestChunks(ctx, embedding, topK)
		if err != nil {
			return nil, fmt.Errorf("reference retrieval failed: %w", err)
		}
		for _, m := range matches {
			results = append(results, &Result{
				Content: m.Chunk.Content,
				Source:  m.Chunk.DocPath,
				Title:   m.Chunk.Title,
				Score:   scoreFromDistance(m.Distance),
			})
		}
	case CorpusWeb:
		matches, err := s.sections.NearestSections(ctx, embedding, topK, s.config.WebDomains)
		if err != nil {
			return nil, fmt.Errorf("web retrieval failed: %w", err)
		}
		for _, m := range matches {
			results = append(results, &Result{
				Content: m.Section.Content,
				Source:  m.Section.SiteDomain,
				Title:   m.Section.Title,
				Score:   scoreFromDistance(m.Distance),
			})
		}
	default:
		return nil, fmt.Errorf("unknown corpus: %s", corpus)
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= s.config.MinScore {
			filtered = append(filtered, r)
		}
	}

	s.logger.Debug().
		Str("corpus", string(corpus)).
		Int("matches", len(filtered)).
		Dur("duration", time.Since(start)).
		Msg("Retrieval completed")

	return filtered, nil
}

// FormatContext renders retrieval results as a labeled prompt block. Each
// chunk keeps its provenance so the model can cite where facts came from.
func FormatContext(label string, results []*Result) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("### ")
	b.WriteString(label)
	b.WriteString("\n")
	for _, r := range results {
		b.WriteString("[source: ")
		b.WriteString(r.Source)
		if r.Title != "" {
			b.WriteString(" | ")
			b.WriteString(r.Title)
		}
		fmt.Fprintf(&b, " | score: %.2f]\n%s\n\n", r.Score, strings.TrimSpace(r.Content))
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// scoreFromDistance maps an L2 distance to a similarity score in (0, 1].
// Monotonic: smaller distances always score higher.
func scoreFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}
