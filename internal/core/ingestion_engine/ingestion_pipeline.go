package ingestion_engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/logger"
)

var (
	// ErrQueueFull is returned by Enqueue when every queue slot is taken.
	ErrQueueFull = errors.New("ingestion queue is full")
	// ErrStopped is returned by Enqueue after the ingestor shut down, and
	// fails jobs that were still queued at that point.
	ErrStopped = errors.New("ingestor stopped")
)

// DocumentIngestor runs pipeline jobs on a fixed number of workers fed by a
// bounded queue.
type DocumentIngestor struct {
	pipeline *Pipeline
	cfg      IngestConfig
	jobs     chan *Job
	log      *slog.Logger

	mu         sync.Mutex
	byID       map[string]*Job
	finished   []string
	stats      Stats
	stopped    bool
	onComplete func(Outcome)

	workers sync.WaitGroup
	exited  chan struct{}
}

func NewDocumentIngestor(p *Pipeline, cfg IngestConfig, log *slog.Logger) *DocumentIngestor {
	cfg = cfg.withDefaults()
	return &DocumentIngestor{
		pipeline: p,
		cfg:      cfg,
		jobs:     make(chan *Job, cfg.QueueSize),
		log:      logger.OrDiscard(log).With("component", "ingestor"),
		byID:     make(map[string]*Job),
		exited:   make(chan struct{}),
	}
}

// OnComplete registers fn to run after every job reaches a terminal state.
// It runs on the worker goroutine.
func (i *DocumentIngestor) OnComplete(fn func(Outcome)) {
	i.mu.Lock()
	i.onComplete = fn
	i.mu.Unlock()
}

// Start runs numWorkers goroutines reading from the jobs channel. When ctx
// ends, workers finish their current job and queued jobs fail with ErrStopped.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		i.workers.Add(1)
		go func(w int) {
			defer i.workers.Done()
			for {
				select {
				case <-ctx.Done():
					i.log.Debug("worker shutting down", "worker", w)
					return
				case job := <-i.jobs:
					i.process(ctx, w, job)
				}
			}
		}(w)
	}
	i.log.Info("ingestor started", "workers", numWorkers, "queue", i.cfg.QueueSize)

	go func() {
		<-ctx.Done()
		i.workers.Wait()

		i.mu.Lock()
		i.stopped = true
		i.mu.Unlock()
		for {
			select {
			case job := <-i.jobs:
				i.complete(job, false, Outcome{
					JobID:    job.id,
					Ref:      job.ref,
					State:    core.StateFailed,
					Reason:   core.ReasonFetchError,
					Err:      core.Fail(core.StateFetching, ErrStopped),
					Started:  time.Now(),
					Finished: time.Now(),
				})
			default:
				close(i.exited)
				return
			}
		}
	}()
}

// Stopped is closed once every worker has exited and the queue is drained.
func (i *DocumentIngestor) Stopped() <-chan struct{} { return i.exited }

// Enqueue schedules ref without blocking.
func (i *DocumentIngestor) Enqueue(ref string) (*Job, error) {
	job := newJob(uuid.NewString(), ref)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return nil, ErrStopped
	}

	select {
	case i.jobs <- job:
	default:
		return nil, ErrQueueFull
	}
	i.byID[job.id] = job
	i.stats.Queued++
	i.log.Info("job queued", "job_id", job.id, "ref", ref)
	return job, nil
}

// Job looks up a queued, running or recently finished job.
func (i *DocumentIngestor) Job(id string) (*Job, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	job, ok := i.byID[id]
	return job, ok
}

func (i *DocumentIngestor) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

func (i *DocumentIngestor) process(ctx context.Context, worker int, job *Job) {
	i.mu.Lock()
	i.stats.Queued--
	i.stats.Running++
	i.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, i.cfg.JobTimeout)
	defer cancel()

	i.log.Info("processing job", "job_id", job.id, "worker", worker)
	out := i.pipeline.run(jobCtx, job.id, job.ref, job.setState)

	i.complete(job, true, out)
}

// complete records the outcome, runs the callback and only then releases
// waiters, so Done implies both are visible. Snapshots taken from the
// callback already show the terminal state with its outcome.
func (i *DocumentIngestor) complete(job *Job, running bool, out Outcome) {
	i.mu.Lock()
	if running {
		i.stats.Running--
	} else {
		i.stats.Queued--
	}
	if out.OK() {
		i.stats.Completed++
	} else {
		i.stats.Failed++
	}
	i.finished = append(i.finished, job.id)
	for len(i.finished) > i.cfg.History {
		delete(i.byID, i.finished[0])
		i.finished = i.finished[1:]
	}
	fn := i.onComplete
	i.mu.Unlock()

	job.record(out)
	if fn != nil {
		fn(out)
	}
	job.release()
}
