package core

import (
	"context"

	"github.com/markdave123-py/coursemate/internal/models"
)

// VectorStore abstracts the on-disk collection so higher layers never depend
// on a specific database. Implementations rely on their own concurrency
// control; callers add no locking.
type VectorStore interface {
	// Upsert writes all entries in one batch. Entries with an existing ID
	// replace the stored one.
	Upsert(ctx context.Context, entries []models.IndexEntry) error
	Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
