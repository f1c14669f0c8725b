package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/coursemate/internal/config"
	"github.com/markdave123-py/coursemate/internal/core"
)

// NewVectorStore opens the backend selected by VECTOR_STORE. Higher layers
// only see core.VectorStore.
func NewVectorStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (core.VectorStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector store configuration is nil")
	}
	switch cfg.VectorStore {
	case config.StoreBolt:
		return OpenBolt(cfg.DBPath, cfg.CollectionName, log)
	case config.StorePgvector:
		return NewPgvectorStore(ctx, cfg.DatabaseURL, cfg.CollectionName, cfg.EmbedDim, log)
	case config.StoreWeaviate:
		return NewWeaviateStore(ctx, cfg.WeaviateHost, cfg.WeaviateAPIKey, cfg.CollectionName, log)
	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE %q", cfg.VectorStore)
	}
}
