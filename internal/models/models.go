package models

import (
	"time"
)

// IndexEntry is one chunk persisted in the vector store.
type IndexEntry struct {
	ID         string    `json:"id"`
	Vector     []float32 `json:"v"`
	Text       string    `json:"t"`
	SourceID   string    `json:"s"`
	Kind       string    `json:"k"`
	ChunkIndex int       `json:"i"`
}

// ScoredChunk is a retrieval hit. Higher Score is closer.
type ScoredChunk struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Kind     string  `json:"kind"`
	Score    float64 `json:"score"`
}

// JobView is the externally visible state of an ingestion job.
type JobView struct {
	ID        string     `json:"id"`
	Ref       string     `json:"ref"`
	State     string     `json:"state"`
	Reason    string     `json:"reason,omitempty"`
	Error     string     `json:"error,omitempty"`
	Kind      string     `json:"kind,omitempty"`
	SourceID  string     `json:"source_id,omitempty"`
	Chunks    int        `json:"chunks"`
	Indexed   int        `json:"indexed"`
	CreatedAt time.Time  `json:"created_at"`
	Finished  *time.Time `json:"finished_at,omitempty"`
}
