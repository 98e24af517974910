// Package store provides persistent vector storage for document chunks.
package store

import (
	"context"
	"errors"

	"github.com/imezh/RAG-agent/internal/model"
)

// ErrDimensionMismatch is returned when an embedding's dimension does not
// match the dimension the collection was created with. No rows are written
// when any chunk in a batch mismatches.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// SearchResult is a chunk returned by similarity search.
type SearchResult struct {
	// ID is the chunk ID.
	ID string
	// DocumentID identifies the source document.
	DocumentID string
	// DocumentName is the source file name.
	DocumentName string
	// Page is the 1-based page number, zero for unpaged formats.
	Page int
	// Content is the chunk text.
	Content string
	// Score is the cosine similarity against the query embedding, in [-1, 1].
	Score float32
}

// VectorStore defines persistent storage for embedded chunks.
type VectorStore interface {
	// Add upserts a batch of chunks. Chunk IDs are derived from content, so
	// re-adding the same document is idempotent. The whole batch is written
	// in one transaction or not at all.
	Add(ctx context.Context, chunks []model.Chunk) error

	// Query returns up to topK chunks ranked by cosine similarity against
	// the embedding, highest first. An empty store yields an empty result,
	// not an error.
	Query(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int64, error)

	// Collection returns the collection name this store writes to.
	Collection() string

	// Clear removes all chunks and resets the collection dimension.
	Clear(ctx context.Context) error

	// Close releases the underlying storage.
	Close() error
}
