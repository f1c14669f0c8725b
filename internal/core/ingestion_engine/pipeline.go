package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/chunker"
	"github.com/markdave123-py/coursemate/internal/core/detector"
	"github.com/markdave123-py/coursemate/internal/logger"
)

// ErrNoChunks means extraction succeeded but chunking produced nothing.
var ErrNoChunks = errors.New("text produced no chunks")

// ErrStagePanic wraps a panic recovered from a pipeline stage.
var ErrStagePanic = errors.New("stage panicked")

// ExtractorSet resolves the extractor for a detected kind.
type ExtractorSet interface {
	For(kind core.FileKind) (core.Extractor, bool)
}

// ChunkIndexer embeds and stores the chunks of one source.
type ChunkIndexer interface {
	Index(ctx context.Context, sourceID string, kind core.FileKind, chunks []core.TextChunk) (int, error)
}

// Outcome is the terminal result of one pipeline run.
type Outcome struct {
	JobID    string
	Ref      string
	State    core.State
	Reason   core.Reason
	Err      error
	Kind     core.FileKind
	SourceID string
	Chunks   int
	Indexed  int
	Started  time.Time
	Finished time.Time
}

// OK reports whether the run completed.
func (o Outcome) OK() bool { return o.State == core.StateCompleted }

// Pipeline drives one reference through fetch, detect, extract, chunk and
// index, strictly in that order and without retries.
type Pipeline struct {
	fetcher    core.Fetcher
	extractors ExtractorSet
	chunker    *chunker.Chunker
	indexer    ChunkIndexer
	log        *slog.Logger
}

func NewPipeline(f core.Fetcher, ex ExtractorSet, ch *chunker.Chunker, ix ChunkIndexer, log *slog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    f,
		extractors: ex,
		chunker:    ch,
		indexer:    ix,
		log:        logger.OrDiscard(log).With("component", "pipeline"),
	}
}

// Run processes ref to a terminal state.
func (p *Pipeline) Run(ctx context.Context, ref string) Outcome {
	return p.run(ctx, "", ref, nil)
}

// run reports each non-terminal state to observe. The terminal state is only
// carried by the returned Outcome. A panic in any stage fails the run at that
// stage instead of escaping.
func (p *Pipeline) run(ctx context.Context, jobID, ref string, observe func(core.State)) (out Outcome) {
	out = Outcome{JobID: jobID, Ref: ref, Started: time.Now()}
	log := p.log.With("job_id", jobID, "ref", ref)

	enter := func(s core.State) error {
		out.State = s
		log.Debug("state", "state", s)
		if observe != nil {
			observe(s)
		}
		if err := ctx.Err(); err != nil {
			return core.Fail(s, err)
		}
		return nil
	}
	fail := func(stage core.State, err error) Outcome {
		err = core.Fail(stage, err)
		out.State = core.StateFailed
		out.Reason = core.ReasonOf(err)
		out.Err = err
		out.Finished = time.Now()
		log.Warn("ingestion failed", "stage", stage, "reason", out.Reason, "err", err)
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("stage panicked", "stage", out.State, "panic", r, "stack", string(debug.Stack()))
			out = fail(out.State, fmt.Errorf("%w: %v", ErrStagePanic, r))
		}
	}()

	if err := enter(core.StateFetching); err != nil {
		return fail(core.StateFetching, err)
	}
	doc, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		return fail(core.StateFetching, err)
	}
	out.SourceID = doc.SourceKey()

	if err := enter(core.StateDetecting); err != nil {
		return fail(core.StateDetecting, err)
	}
	out.Kind = detector.Classify(doc.Data, doc.Filename, doc.ContentType)
	ex, ok := p.extractors.For(out.Kind)
	if !ok {
		return fail(core.StateDetecting, fmt.Errorf("unrecognised format (filename %q, content type %q)", doc.Filename, doc.ContentType))
	}
	log.Info("format detected", "kind", out.Kind, "bytes", len(doc.Data), "source_id", out.SourceID)

	if err := enter(core.StateExtracting); err != nil {
		return fail(core.StateExtracting, err)
	}
	text, err := ex.Extract(ctx, doc)
	if err != nil {
		return fail(core.StateExtracting, err)
	}

	if err := enter(core.StateChunking); err != nil {
		return fail(core.StateChunking, err)
	}
	chunks := p.chunker.Chunk(text.Text)
	if len(chunks) == 0 {
		return fail(core.StateChunking, ErrNoChunks)
	}
	out.Chunks = len(chunks)

	if err := enter(core.StateIndexing); err != nil {
		return fail(core.StateIndexing, err)
	}
	n, err := p.indexer.Index(ctx, out.SourceID, out.Kind, chunks)
	if err != nil {
		return fail(core.StateIndexing, err)
	}
	out.Indexed = n

	out.State = core.StateCompleted
	out.Finished = time.Now()
	log.Info("ingestion completed", "kind", out.Kind, "chunks", out.Chunks, "took", out.Finished.Sub(out.Started))
	return out
}
