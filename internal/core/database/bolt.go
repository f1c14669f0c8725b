package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/logger"
	"github.com/markdave123-py/coursemate/internal/models"
)

// BoltStore keeps a collection in a local bbolt file and searches it by
// brute-force cosine similarity over an in-memory copy.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
	log    *slog.Logger

	mu      sync.RWMutex
	entries map[string]models.IndexEntry
	dim     int
}

var _ core.VectorStore = (*BoltStore)(nil)

// OpenBolt opens (or creates) <dir>/<collection>.db.
func OpenBolt(dir, collection string, log *slog.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, collection+".db")
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &BoltStore{
		db:      bdb,
		bucket:  []byte(collection),
		log:     logger.OrDiscard(log).With("component", "bolt-store", "collection", collection),
		entries: make(map[string]models.IndexEntry),
	}
	if err := bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	if err := s.load(); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("load collection: %w", err)
	}
	s.log.Info("collection opened", "path", path, "entries", len(s.entries))
	return s, nil
}

func (s *BoltStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var e models.IndexEntry
			if err := json.Unmarshal(v, &e); err != nil {
				s.log.Warn("skipping corrupt entry", "id", string(k), "err", err)
				return nil
			}
			e.ID = string(k)
			s.entries[e.ID] = e
			if s.dim == 0 {
				s.dim = len(e.Vector)
			}
			return nil
		})
	})
}

// Upsert writes every entry in one bbolt transaction; either all land or none.
func (s *BoltStore) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			return fmt.Errorf("entry %q has no id or vector", e.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", dim, len(e.Vector))
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(e.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt upsert: %w", err)
	}

	for _, e := range entries {
		s.entries[e.ID] = e
	}
	s.dim = dim
	return nil
}

func (s *BoltStore) Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dim, len(vector))
	}

	hits := make([]models.ScoredChunk, 0, len(s.entries))
	for _, e := range s.entries {
		hits = append(hits, models.ScoredChunk{
			ID:       e.ID,
			Text:     e.Text,
			SourceID: e.SourceID,
			Kind:     e.Kind,
			Score:    Cosine(vector, e.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits[:min(k, len(hits))], nil
}

func (s *BoltStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
