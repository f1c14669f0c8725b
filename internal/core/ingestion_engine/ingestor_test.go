package ingestion_engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/models"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestIngestor_RunsJobToCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, &fakeExtractor{text: "week one: sorting"}, &fakeIndexer{})
	ing := NewDocumentIngestor(p, IngestConfig{}, nil)

	var callbacks atomic.Int32
	ing.OnComplete(func(o Outcome) { callbacks.Add(1) })
	ing.Start(ctx, 2)

	job, err := ing.Enqueue("https://drive.google.com/file/d/syl/view")
	require.NoError(t, err)
	require.NotEmpty(t, job.ID())

	out, err := job.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, out.State)
	assert.Equal(t, job.ID(), out.JobID)
	assert.EqualValues(t, 1, callbacks.Load(), "callback runs before Done")

	snap := job.Snapshot()
	assert.Equal(t, "Completed", snap.State)
	assert.Equal(t, "document", snap.Kind)
	assert.Equal(t, 1, snap.Chunks)
	require.NotNil(t, snap.Finished)

	found, ok := ing.Job(job.ID())
	require.True(t, ok)
	assert.Same(t, job, found)

	assert.Equal(t, Stats{Completed: 1}, ing.Stats())
}

func TestIngestor_QueueFullDoesNotBlock(t *testing.T) {
	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, &fakeExtractor{text: "x"}, &fakeIndexer{})
	ing := NewDocumentIngestor(p, IngestConfig{QueueSize: 1}, nil)

	first, err := ing.Enqueue("a")
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, first.State())

	_, err = ing.Enqueue("b")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, Stats{Queued: 1}, ing.Stats())
}

func TestIngestor_FailedJobReportsReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestPipeline(t, &fakeFetcher{doc: core.RawDocument{Data: []byte("??"), Filename: "x.bin"}}, &fakeExtractor{}, &fakeIndexer{})
	ing := NewDocumentIngestor(p, IngestConfig{}, nil)
	ing.Start(ctx, 1)

	job, err := ing.Enqueue("ref")
	require.NoError(t, err)
	out, err := job.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Equal(t, core.ReasonUnknownFormat, out.Reason)
	snap := job.Snapshot()
	assert.Equal(t, "Failed", snap.State)
	assert.Equal(t, "UnknownFormat", snap.Reason)
	assert.NotEmpty(t, snap.Error)
	assert.Equal(t, 1, ing.Stats().Failed)
}

func TestIngestor_HistoryIsBounded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, &fakeExtractor{text: "x"}, &fakeIndexer{})
	ing := NewDocumentIngestor(p, IngestConfig{History: 2}, nil)
	ing.Start(ctx, 1)

	var ids []string
	for _, ref := range []string{"a", "b", "c"} {
		job, err := ing.Enqueue(ref)
		require.NoError(t, err)
		_, err = job.Wait(waitCtx(t))
		require.NoError(t, err)
		ids = append(ids, job.ID())
	}

	_, ok := ing.Job(ids[0])
	assert.False(t, ok, "oldest finished job is pruned")
	_, ok = ing.Job(ids[2])
	assert.True(t, ok)
	assert.Equal(t, 3, ing.Stats().Completed)
}

func TestIngestor_ShutdownFailsPendingJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := newTestPipeline(t, &fakeFetcher{block: true}, &fakeExtractor{text: "x"}, &fakeIndexer{})
	ing := NewDocumentIngestor(p, IngestConfig{QueueSize: 4}, nil)
	ing.Start(ctx, 1)

	running, err := ing.Enqueue("a")
	require.NoError(t, err)
	queued, err := ing.Enqueue("b")
	require.NoError(t, err)

	cancel()
	select {
	case <-ing.Stopped():
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor did not stop")
	}

	for _, job := range []*Job{running, queued} {
		out, err := job.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, core.StateFailed, out.State)
		assert.Equal(t, core.ReasonFetchError, out.Reason)
	}

	_, err = ing.Enqueue("c")
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, Stats{Failed: 2}, ing.Stats())
}

func TestJob_WaitHonoursContext(t *testing.T) {
	job := newJob("id", "ref")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := job.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	snap := job.Snapshot()
	assert.Equal(t, "Pending", snap.State)
	assert.Nil(t, snap.Finished)
}

func TestIngestor_SnapshotFromCallbackIsComplete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, &fakeExtractor{err: core.ErrNoText}, &fakeIndexer{})
	ing := NewDocumentIngestor(p, IngestConfig{}, nil)

	views := make(chan models.JobView, 1)
	ing.OnComplete(func(o Outcome) {
		job, ok := ing.Job(o.JobID)
		if ok {
			views <- job.Snapshot()
		}
	})
	ing.Start(ctx, 1)

	job, err := ing.Enqueue("ref")
	require.NoError(t, err)
	_, err = job.Wait(waitCtx(t))
	require.NoError(t, err)

	require.Len(t, views, 1)
	v := <-views
	assert.Equal(t, "Failed", v.State)
	assert.Equal(t, string(core.ReasonExtractionFailure), v.Reason)
	require.NotNil(t, v.Finished)
	assert.False(t, v.Finished.IsZero())
}

func TestIngestor_PanickingJobDoesNotStopWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestPipeline(t, &fakeFetcher{doc: pdfDoc}, panickingExtractor{}, &fakeIndexer{})
	ing := NewDocumentIngestor(p, IngestConfig{}, nil)
	ing.Start(ctx, 1)

	for range 2 {
		job, err := ing.Enqueue("ref")
		require.NoError(t, err)
		out, err := job.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, core.ReasonExtractionFailure, out.Reason)
	}
	assert.Equal(t, Stats{Failed: 2}, ing.Stats())
}
