package ingestion_engine_test

import (
	"context"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/chunker"
	db "github.com/markdave123-py/coursemate/internal/core/database"
	"github.com/markdave123-py/coursemate/internal/core/extractors"
	"github.com/markdave123-py/coursemate/internal/core/fetcher"
	engine "github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
	"github.com/markdave123-py/coursemate/internal/core/indexer"
	"github.com/markdave123-py/coursemate/internal/services"
)

type onePagePDF struct{ text string }

func (p onePagePDF) PageCount(context.Context, string) (int, error)        { return 1, nil }
func (p onePagePDF) PageText(context.Context, string, int) (string, error) { return p.text, nil }
func (p onePagePDF) RenderPage(context.Context, string, int, int, string) ([]byte, error) {
	return nil, nil
}

// wordEmbedder hashes words into a small bag-of-words vector.
type wordEmbedder struct{}

func (wordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 32)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
			v[h.Sum32()%32]++
		}
		v[0] += 0.01
		out[i] = v
	}
	return out, nil
}

type recordingLLM struct{ user string }

func (l *recordingLLM) Generate(_ context.Context, _, user string) (string, error) {
	l.user = user
	return "The midterm is on March 5th.", nil
}

func TestEndToEnd_IngestThenAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7\nsyllabus"))
	}))
	defer srv.Close()

	store, err := db.OpenBolt(t.TempDir(), "vnit_lms", nil)
	require.NoError(t, err)
	defer store.Close()

	registry := extractors.NewRegistry(extractors.Tools{PDF: onePagePDF{text: "Midterm is on March 5th."}}, extractors.Options{}, nil)
	ch, err := chunker.New(1000, 200)
	require.NoError(t, err)
	p := engine.NewPipeline(fetcher.New(fetcher.Options{}, nil), registry, ch, indexer.New(wordEmbedder{}, store, nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ing := engine.NewDocumentIngestor(p, engine.IngestConfig{}, nil)
	ing.Start(ctx, 2)

	for range 2 {
		job, err := ing.Enqueue(srv.URL + "/syllabus.pdf")
		require.NoError(t, err)
		out, err := job.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, core.StateCompleted, out.State, "err: %v", out.Err)
		assert.Equal(t, core.KindDocument, out.Kind)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-ingesting the same file overwrites its chunks")

	llm := &recordingLLM{}
	answer, err := services.NewChatService(wordEmbedder{}, store, llm, 5, nil).Ask(ctx, "When is the midterm?")
	require.NoError(t, err)
	assert.Equal(t, "The midterm is on March 5th.", answer)
	assert.Contains(t, llm.user, "Midterm is on March 5th.")
	assert.Contains(t, llm.user, "Student Question: When is the midterm?")
}

func TestEndToEnd_MissingCapabilityFailsAtExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nnot really"))
	}))
	defer srv.Close()

	store, err := db.OpenBolt(t.TempDir(), "c", nil)
	require.NoError(t, err)
	defer store.Close()

	registry := extractors.NewRegistry(extractors.Tools{}, extractors.Options{}, nil)
	ch, err := chunker.New(1000, 200)
	require.NoError(t, err)
	p := engine.NewPipeline(fetcher.New(fetcher.Options{}, nil), registry, ch, indexer.New(wordEmbedder{}, store, nil), nil)

	out := p.Run(context.Background(), srv.URL+"/board.png")
	assert.Equal(t, core.ReasonExtractionFailure, out.Reason)
	assert.ErrorIs(t, out.Err, core.ErrCapabilityUnavailable)
	assert.Equal(t, core.KindImage, out.Kind)
}
