package reference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/chunker"
)

// SyncStats summarizes one reference sync run.
type SyncStats struct {
	DocsScanned   int `json:"docs_scanned"`
	DocsUnchanged int `json:"docs_unchanged"`
	DocsEmbedded  int `json:"docs_embedded"`
	ChunksWritten int `json:"chunks_written"`
	Errors        int `json:"errors"`
}

// Service ingests the curated knowledge base from a local docs directory.
// Each file is hashed; only changed files are re-chunked and re-embedded.
type Service struct {
	config   *common.ReferenceConfig
	chunkCfg chunker.Options
	embedder interfaces.EmbeddingService
	storage  interfaces.ReferenceStorage
	logger   arbor.ILogger
}

// NewService creates a reference ingestion service.
func NewService(cfg *common.ReferenceConfig, crawlerCfg *common.CrawlerConfig,
	embedder interfaces.EmbeddingService, storage interfaces.ReferenceStorage, logger arbor.ILogger) *Service {
	return &Service{
		config: cfg,
		chunkCfg: chunker.Options{
			MaxChars: crawlerCfg.ChunkMaxChars,
			MinChars: crawlerCfg.ChunkMinChars,
		},
		embedder: embedder,
		storage:  storage,
		logger:   logger,
	}
}

// Sync scans the docs directory and re-embeds every file whose content
// hash changed. Per-file failures are counted and skipped.
func (s *Service) Sync(ctx context.Context) (*SyncStats, error) {
	stats := &SyncStats{}
	start := time.Now()

	paths, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan reference dir: %w", err)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.DocsScanned++
		if err := s.syncDoc(ctx, path, stats); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Reference doc sync failed")
			stats.Errors++
		}
	}

	s.logger.Info().
		Int("docs_scanned", stats.DocsScanned).
		Int("docs_unchanged", stats.DocsUnchanged).
		Int("docs_embedded", stats.DocsEmbedded).
		Int("chunks_written", stats.ChunksWritten).
		Int("errors", stats.Errors).
		Dur("duration", time.Since(start)).
		Msg("Reference sync completed")

	return stats, nil
}

// scan returns the relative paths of all matching files under the docs dir.
func (s *Service) scan() ([]string, error) {
	extensions := s.config.Extensions
	if len(extensions) == 0 {
		extensions = []string{".md"}
	}

	var paths []string
	err := filepath.WalkDir(s.config.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range extensions {
			if ext == want {
				rel, relErr := filepath.Rel(s.config.Dir, path)
				if relErr != nil {
					return relErr
				}
				paths = append(paths, rel)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (s *Service) syncDoc(ctx context.Context, relPath string, stats *SyncStats) error {
	raw, err := os.ReadFile(filepath.Join(s.config.Dir, relPath))
	if err != nil {
		return err
	}
	content := string(raw)
	hash := common.ContentHash(content)

	existing, err := s.storage.GetDoc(ctx, relPath)
	if err != nil && !common.IsNotFound(err) {
		return err
	}
	if existing != nil && existing.ContentHash == hash {
		stats.DocsUnchanged++
		return nil
	}

	chunks := chunker.Split(content, s.chunkCfg)
	if len(chunks) == 0 {
		stats.DocsUnchanged++
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now()
	title := docTitle(content, relPath)
	rows := make([]*models.ReferenceChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = &models.ReferenceChunk{
			ID:          common.NewSectionID(),
			DocPath:     relPath,
			Index:       c.Index,
			Title:       title,
			Content:     c.Content,
			ContentHash: common.ContentHash(c.Content),
			Embedding:   embeddings[i],
			Dimension:   s.embedder.Dimension(),
			Model:       s.embedder.ModelName(),
			CreatedAt:   now,
		}
	}

	if err := s.storage.DeleteChunksByDoc(ctx, relPath); err != nil {
		return err
	}
	if err := s.storage.SaveChunks(ctx, rows); err != nil {
		return err
	}

	doc := &models.ReferenceDoc{
		Path:        relPath,
		Title:       title,
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
	}
	if err := s.storage.UpsertDoc(ctx, doc); err != nil {
		return err
	}

	stats.DocsEmbedded++
	stats.ChunksWritten += len(rows)
	return nil
}

// docTitle takes the first markdown H1 if present, otherwise the filename
// without extension.
func docTitle(content, relPath string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
