package ingestion_engine

import (
	"context"
	"sync"
	"time"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/models"
)

// Job is a queued ingestion request. Done closes once the job is terminal.
type Job struct {
	id      string
	ref     string
	created time.Time
	done    chan struct{}

	mu      sync.RWMutex
	state   core.State
	outcome Outcome
}

func newJob(id, ref string) *Job {
	return &Job{
		id:      id,
		ref:     ref,
		created: time.Now(),
		done:    make(chan struct{}),
		state:   core.StatePending,
	}
}

func (j *Job) ID() string  { return j.id }
func (j *Job) Ref() string { return j.ref }

func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job is terminal or ctx ends.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		j.mu.RLock()
		defer j.mu.RUnlock()
		return j.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (j *Job) State() core.State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Snapshot returns the externally visible view of the job.
func (j *Job) Snapshot() models.JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()

	v := models.JobView{
		ID:        j.id,
		Ref:       j.ref,
		State:     string(j.state),
		CreatedAt: j.created,
	}
	if !j.state.Terminal() {
		return v
	}
	o := j.outcome
	v.Reason = string(o.Reason)
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	if o.Kind != core.KindUnknown {
		v.Kind = o.Kind.String()
	}
	v.SourceID = o.SourceID
	v.Chunks = o.Chunks
	v.Indexed = o.Indexed
	finished := o.Finished
	v.Finished = &finished
	return v
}

func (j *Job) setState(s core.State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// record makes the outcome and terminal state visible together.
func (j *Job) record(o Outcome) {
	j.mu.Lock()
	j.state = o.State
	j.outcome = o
	j.mu.Unlock()
}

func (j *Job) release() { close(j.done) }
