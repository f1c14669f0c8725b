package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/logger"
	"github.com/markdave123-py/coursemate/internal/models"
)

// PgvectorStore keeps a collection in one Postgres table with a pgvector
// column and searches it by cosine distance.
type PgvectorStore struct {
	db    *sql.DB
	table string
	log   *slog.Logger
}

var _ core.VectorStore = (*PgvectorStore)(nil)

func NewPgvectorStore(ctx context.Context, databaseURL, collection string, dim int, log *slog.Logger) (*PgvectorStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	table := TableName(collection)
	if err := EnsureBootstrapped(ctx, db, table, dim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log = logger.OrDiscard(log).With("component", "pgvector-store", "table", table)
	log.Info("collection ready", "dim", dim)
	return &PgvectorStore{db: db, table: table, log: log}, nil
}

func (c *PgvectorStore) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Upsert writes all entries in a single transaction.
func (c *PgvectorStore) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (id, source_id, kind, chunk_index, text, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			kind = EXCLUDED.kind,
			chunk_index = EXCLUDED.chunk_index,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`, c.table)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.SourceID, e.Kind, e.ChunkIndex, e.Text, pgvector.NewVector(e.Vector),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Query returns the k nearest chunks; Score is 1 - cosine distance.
func (c *PgvectorStore) Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	q := fmt.Sprintf(`
		SELECT id, text, source_id, kind, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, c.table)
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredChunk
	for rows.Next() {
		var hit models.ScoredChunk
		if err := rows.Scan(&hit.ID, &hit.Text, &hit.SourceID, &hit.Kind, &hit.Score); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

func (c *PgvectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, c.table)).Scan(&n)
	return n, err
}
