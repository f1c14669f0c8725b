package ingestion_engine

import "time"

// IngestConfig tunes the worker pool.
//
// QueueSize:  jobs waiting for a worker; Enqueue fails beyond it.
// History:    finished jobs kept for status lookups.
// JobTimeout: upper bound for one pipeline run.
type IngestConfig struct {
	QueueSize  int
	History    int
	JobTimeout time.Duration
}

func (c IngestConfig) withDefaults() IngestConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.History <= 0 {
		c.History = 256
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 15 * time.Minute
	}
	return c
}

// Stats counts jobs by lifecycle phase. Completed and Failed are totals
// since start, not bounded by History.
type Stats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
