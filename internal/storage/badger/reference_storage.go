package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReferenceStorage implements the ReferenceStorage interface for Badger
type ReferenceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReferenceStorage creates a new ReferenceStorage instance
func NewReferenceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReferenceStorage {
	return &ReferenceStorage{db: db, logger: logger}
}

func (s *ReferenceStorage) UpsertDoc(ctx context.Context, doc *models.ReferenceDoc) error {
	if doc.Path == "" {
		return fmt.Errorf("reference doc path is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		var existing models.ReferenceDoc
		if err := s.db.Store().Get(doc.Path, &existing); err == nil {
			doc.CreatedAt = existing.CreatedAt
		} else {
			doc.CreatedAt = now
		}
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.Path, doc); err != nil {
		return fmt.Errorf("failed to upsert reference doc: %w", err)
	}
	return nil
}

func (s *ReferenceStorage) GetDoc(ctx context.Context, path string) (*models.ReferenceDoc, error) {
	var doc models.ReferenceDoc
	if err := s.db.Store().Get(path, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("reference doc", path)
		}
		return nil, fmt.Errorf("failed to get reference doc: %w", err)
	}
	return &doc, nil
}

func (s *ReferenceStorage) SaveChunks(ctx context.Context, chunks []*models.ReferenceChunk) error {
	now := time.Now()
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("reference chunk ID is required")
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		if err := s.db.Store().Upsert(chunk.ID, chunk); err != nil {
			return fmt.Errorf("failed to save reference chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

func (s *ReferenceStorage) DeleteChunksByDoc(ctx context.Context, docPath string) error {
	err := s.db.Store().DeleteMatching(&models.ReferenceChunk{}, badgerhold.Where("DocPath").Eq(docPath))
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete chunks for doc %s: %w", docPath, err)
	}
	return nil
}

func (s *ReferenceStorage) NearestChunks(ctx context.Context, query []float32, limit int) ([]*models.ReferenceMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	var chunks []models.ReferenceChunk
	if err := s.db.Store().Find(&chunks, nil); err != nil {
		return nil, fmt.Errorf("failed to scan reference chunks: %w", err)
	}

	matches := make([]*models.ReferenceMatch, 0, len(chunks))
	for i := range chunks {
		matches = append(matches, &models.ReferenceMatch{
			Chunk:    &chunks[i],
			Distance: l2Distance(query, chunks[i].Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
