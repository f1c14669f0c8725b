package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wm "github.com/weaviate/weaviate/entities/models"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/logger"
	"github.com/markdave123-py/coursemate/internal/models"
)

const weaviateBatchSize = 200

// chunkNamespace derives deterministic Weaviate object UUIDs from chunk ids.
var chunkNamespace = uuid.MustParse("6f1c3b8e-2a47-5d0e-9c1a-7b2e4f6a8d10")

// WeaviateStore keeps a collection as a Weaviate class with caller-supplied
// vectors. Batches are not transactional: a failed batch may leave earlier
// objects written, and re-running the job overwrites them.
type WeaviateStore struct {
	client *weaviate.Client
	class  string
	log    *slog.Logger
}

var _ core.VectorStore = (*WeaviateStore)(nil)

func NewWeaviateStore(ctx context.Context, host, apiKey, collection string, log *slog.Logger) (*WeaviateStore, error) {
	scheme := "http"
	if strings.HasPrefix(host, "https://") {
		scheme = "https"
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")

	cfg := weaviate.Config{Host: host, Scheme: scheme}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	s := &WeaviateStore{
		client: client,
		class:  ClassName(collection),
		log:    logger.OrDiscard(log).With("component", "weaviate-store"),
	}
	if err := s.ensureClass(ctx); err != nil {
		return nil, err
	}
	s.log.Info("collection ready", "class", s.class, "host", host)
	return s, nil
}

// ClassName turns a collection name into a Weaviate class name
// ("vnit_lms" becomes "VnitLms").
func ClassName(collection string) string {
	var b strings.Builder
	upper := true
	for _, r := range collection {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	name := b.String()
	if first, _ := utf8.DecodeRuneInString(name); !unicode.IsLetter(first) {
		name = "C" + name
	}
	return name
}

// ObjectID maps a chunk id to its stable Weaviate UUID.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String())
}

func (s *WeaviateStore) classDefinition() *wm.Class {
	return &wm.Class{
		Class:      s.class,
		Vectorizer: "none",
		Properties: []*wm.Property{
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "sourceId", DataType: []string{"text"}},
			{Name: "kind", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
		},
		VectorIndexType: "hnsw",
	}
}

func (s *WeaviateStore) ensureClass(ctx context.Context) error {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}
	for _, class := range schema.Classes {
		if class.Class == s.class {
			return nil
		}
	}
	if err := s.client.Schema().ClassCreator().WithClass(s.classDefinition()).Do(ctx); err != nil {
		return fmt.Errorf("failed to create %s class: %w", s.class, err)
	}
	return nil
}

func (s *WeaviateStore) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	for start := 0; start < len(entries); start += weaviateBatchSize {
		end := min(start+weaviateBatchSize, len(entries))

		batcher := s.client.Batch().ObjectsBatcher()
		for _, e := range entries[start:end] {
			batcher = batcher.WithObjects(&wm.Object{
				Class: s.class,
				ID:    ObjectID(e.ID),
				Properties: map[string]any{
					"chunkId":    e.ID,
					"text":       e.Text,
					"sourceId":   e.SourceID,
					"kind":       e.Kind,
					"chunkIndex": e.ChunkIndex,
				},
				Vector: e.Vector,
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", start, end, err)
		}
		if err := batchErrors(resp); err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func batchErrors(resp []wm.ObjectsGetResponse) error {
	var errs []error
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, item := range r.Result.Errors.Error {
			if item != nil {
				errs = append(errs, fmt.Errorf("object %s: %s", r.ID, item.Message))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *WeaviateStore) Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "text"},
		{Name: "sourceId"},
		{Name: "kind"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	resp, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("search failed: %s", resp.Errors[0].Message)
	}
	return parseHits(resp.Data, s.class), nil
}

func (s *WeaviateStore) Count(ctx context.Context) (int, error) {
	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("count failed: %s", resp.Errors[0].Message)
	}
	return parseCount(resp.Data, s.class), nil
}

func (s *WeaviateStore) Close() error { return nil }

func parseHits(data map[string]wm.JSONObject, class string) []models.ScoredChunk {
	get, _ := data["Get"].(map[string]any)
	items, _ := get[class].([]any)

	out := make([]models.ScoredChunk, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		hit := models.ScoredChunk{}
		hit.ID, _ = obj["chunkId"].(string)
		hit.Text, _ = obj["text"].(string)
		hit.SourceID, _ = obj["sourceId"].(string)
		hit.Kind, _ = obj["kind"].(string)
		if add, ok := obj["_additional"].(map[string]any); ok {
			if d, ok := add["distance"].(float64); ok {
				hit.Score = 1 - d
			}
		}
		out = append(out, hit)
	}
	return out
}

func parseCount(data map[string]wm.JSONObject, class string) int {
	agg, _ := data["Aggregate"].(map[string]any)
	rows, _ := agg[class].([]any)
	if len(rows) == 0 {
		return 0
	}
	row, _ := rows[0].(map[string]any)
	meta, _ := row["meta"].(map[string]any)
	n, _ := meta["count"].(float64)
	return int(n)
}
