package ingestion_engine

import "context"

// Ingestor accepts references for background ingestion.
type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(ref string) (*Job, error)
	Job(id string) (*Job, bool)
	Stats() Stats
}

var _ Ingestor = (*DocumentIngestor)(nil)
