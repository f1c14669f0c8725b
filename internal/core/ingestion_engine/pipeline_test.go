package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/chunker"
)

type fakeFetcher struct {
	doc   core.RawDocument
	err   error
	block bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) (core.RawDocument, error) {
	if f.block {
		<-ctx.Done()
		return core.RawDocument{}, ctx.Err()
	}
	if f.err != nil {
		return core.RawDocument{}, f.err
	}
	doc := f.doc
	doc.Ref = ref
	return doc, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Kind() core.FileKind { return core.KindDocument }
func (e *fakeExtractor) Extract(context.Context, core.RawDocument) (core.ExtractedText, error) {
	return core.ExtractedText{Kind: core.KindDocument, Text: e.text}, e.err
}

type fakeExtractors struct{ ex core.Extractor }

func (f fakeExtractors) For(kind core.FileKind) (core.Extractor, bool) {
	if kind == core.KindUnknown {
		return nil, false
	}
	return f.ex, true
}

type fakeIndexer struct {
	mu       sync.Mutex
	err      error
	sourceID string
	kind     core.FileKind
	chunks   []core.TextChunk
	calls    int
}

func (x *fakeIndexer) Index(_ context.Context, sourceID string, kind core.FileKind, chunks []core.TextChunk) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls++
	if x.err != nil {
		return 0, core.Fail(core.StateIndexing, x.err)
	}
	x.sourceID, x.kind, x.chunks = sourceID, kind, chunks
	return len(chunks), nil
}

var pdfDoc = core.RawDocument{Data: []byte("%PDF-1.4 body"), Filename: "syllabus.pdf", SourceID: "drive_syl"}

func newTestPipeline(t *testing.T, f core.Fetcher, ex core.Extractor, ix ChunkIndexer) *Pipeline {
	t.Helper()
	ch, err := chunker.New(1000, 200)
	require.NoError(t, err)
	return NewPipeline(f, fakeExtractors{ex}, ch, ix, nil)
}

func TestPipeline_Completed(t *testing.T) {
	ix := &fakeIndexer{}
	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, &fakeExtractor{text: strings.Repeat("a", 2500)}, ix)

	var states []core.State
	out := p.run(context.Background(), "job-1", "ref", func(s core.State) { states = append(states, s) })

	assert.True(t, out.OK())
	assert.Equal(t, core.StateCompleted, out.State)
	assert.Equal(t, core.ReasonNone, out.Reason)
	assert.NoError(t, out.Err)
	assert.Equal(t, core.KindDocument, out.Kind)
	assert.Equal(t, "drive_syl", out.SourceID)
	assert.Equal(t, 3, out.Chunks)
	assert.Equal(t, 3, out.Indexed)
	assert.False(t, out.Finished.Before(out.Started))
	assert.Equal(t, []core.State{
		core.StateFetching, core.StateDetecting, core.StateExtracting,
		core.StateChunking, core.StateIndexing,
	}, states, "terminal states are carried by the outcome only")
	assert.Equal(t, "drive_syl", ix.sourceID)
}

func TestPipeline_FailureReasons(t *testing.T) {
	cases := []struct {
		name    string
		fetcher *fakeFetcher
		ex      *fakeExtractor
		ix      *fakeIndexer
		reason  core.Reason
		stage   core.State
	}{
		{
			name:    "fetch",
			fetcher: &fakeFetcher{err: errors.New("404")},
			ex:      &fakeExtractor{text: "x"},
			reason:  core.ReasonFetchError,
		},
		{
			name:    "unknown format",
			fetcher: &fakeFetcher{doc: core.RawDocument{Data: []byte("just words"), Filename: "notes.xyz"}},
			ex:      &fakeExtractor{text: "x"},
			reason:  core.ReasonUnknownFormat,
		},
		{
			name:    "extraction",
			fetcher: &fakeFetcher{doc: pdfDoc},
			ex:      &fakeExtractor{err: core.ErrCapabilityUnavailable},
			reason:  core.ReasonExtractionFailure,
		},
		{
			name:    "empty chunks",
			fetcher: &fakeFetcher{doc: pdfDoc},
			ex:      &fakeExtractor{text: " \n\t "},
			reason:  core.ReasonEmptyChunks,
		},
		{
			name:    "index",
			fetcher: &fakeFetcher{doc: pdfDoc},
			ex:      &fakeExtractor{text: "hello"},
			ix:      &fakeIndexer{err: errors.New("store down")},
			reason:  core.ReasonIndexError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix := tc.ix
			if ix == nil {
				ix = &fakeIndexer{}
			}
			out := newTestPipeline(t, tc.fetcher, tc.ex, ix).Run(context.Background(), "ref")

			assert.Equal(t, core.StateFailed, out.State)
			assert.Equal(t, tc.reason, out.Reason)
			require.Error(t, out.Err)
			assert.Equal(t, tc.reason, core.ReasonOf(out.Err))
			if tc.reason != core.ReasonIndexError {
				assert.Zero(t, ix.calls, "nothing is written before indexing")
			}
		})
	}
}

func TestPipeline_ExtractionErrorKeepsCause(t *testing.T) {
	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, &fakeExtractor{err: core.ErrNoText}, &fakeIndexer{})
	out := p.Run(context.Background(), "ref")
	assert.ErrorIs(t, out.Err, core.ErrNoText)
}

func TestPipeline_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := &fakeIndexer{}
	out := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, &fakeExtractor{text: "x"}, ix).Run(ctx, "ref")
	assert.Equal(t, core.ReasonFetchError, out.Reason)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Zero(t, ix.calls)
}

type panickingExtractor struct{}

func (panickingExtractor) Kind() core.FileKind { return core.KindDocument }
func (panickingExtractor) Extract(context.Context, core.RawDocument) (core.ExtractedText, error) {
	panic("runtime error: invalid memory address or nil pointer dereference")
}

func TestPipeline_StagePanicFailsThatStage(t *testing.T) {
	ix := &fakeIndexer{}
	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, panickingExtractor{}, ix)

	var out Outcome
	require.NotPanics(t, func() { out = p.Run(context.Background(), "ref") })

	assert.Equal(t, core.StateFailed, out.State)
	assert.Equal(t, core.ReasonExtractionFailure, out.Reason)
	assert.ErrorIs(t, out.Err, ErrStagePanic)
	assert.False(t, out.Finished.IsZero())
	assert.Zero(t, ix.calls)
}
