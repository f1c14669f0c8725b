package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/logger"
	"github.com/markdave123-py/coursemate/internal/models"
)

// Indexer embeds chunks and writes them to the vector store in one batch.
type Indexer struct {
	embedder core.EmbeddingProvider
	store    core.VectorStore
	log      *slog.Logger
}

func New(embedder core.EmbeddingProvider, store core.VectorStore, log *slog.Logger) *Indexer {
	return &Indexer{
		embedder: embedder,
		store:    store,
		log:      logger.OrDiscard(log).With("component", "indexer"),
	}
}

// StableID names chunk i of a source. Re-indexing the same source yields
// the same ids, so the store overwrites instead of duplicating.
func StableID(sourceID string, kind core.FileKind, i int) string {
	return sourceID + "_" + kind.String() + "_chunk_" + strconv.Itoa(i)
}

// Index returns the number of entries written. Failures are IndexError.
func (x *Indexer) Index(ctx context.Context, sourceID string, kind core.FileKind, chunks []core.TextChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := x.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, core.Fail(core.StateIndexing, fmt.Errorf("embed %d chunks: %w", len(chunks), err))
	}
	if len(vectors) != len(chunks) {
		return 0, core.Fail(core.StateIndexing, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) == 0 {
			return 0, core.Fail(core.StateIndexing, fmt.Errorf("empty vector for chunk %d", c.Index))
		}
		entries[i] = models.IndexEntry{
			ID:         StableID(sourceID, kind, c.Index),
			Vector:     vectors[i],
			Text:       c.Text,
			SourceID:   sourceID,
			Kind:       kind.String(),
			ChunkIndex: c.Index,
		}
	}

	if err := x.store.Upsert(ctx, entries); err != nil {
		return 0, core.Fail(core.StateIndexing, fmt.Errorf("upsert: %w", err))
	}
	x.log.Info("chunks indexed", "source_id", sourceID, "kind", kind.String(), "count", len(entries))
	return len(entries), nil
}
