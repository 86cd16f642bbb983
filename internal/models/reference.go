package models

import "time"

// ReferenceDoc is one file of the curated internal knowledge base, keyed
// by its source path. Its chunks follow the same replace-on-change
// lifecycle as web sections.
type ReferenceDoc struct {
	Path        string    `json:"path" badgerhold:"key"` // Source path relative to the docs dir
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReferenceChunk is one embedded chunk of a ReferenceDoc.
type ReferenceChunk struct {
	ID          string    `json:"id" badgerhold:"key"`
	DocPath     string    `json:"doc_path" badgerhold:"index"`
	Index       int       `json:"index"`
	Title       string    `json:"title"` // Doc title at embed time, carried into retrieval results
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Dimension   int       `json:"dimension"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
}
