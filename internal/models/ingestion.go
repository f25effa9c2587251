package models

import "time"

// IngestionState is a stage of the ingestion pipeline.
type IngestionState string

const (
	StateIdle        IngestionState = "idle"
	StateLoading     IngestionState = "loading"
	StateSplitting   IngestionState = "splitting"
	StateIdentifying IngestionState = "identifying"
	StateDiffing     IngestionState = "diffing"
	StateUpserting   IngestionState = "upserting"
	StateDone        IngestionState = "done"
	StateFailed      IngestionState = "failed"
)

// Terminal reports whether no further transition can happen.
func (s IngestionState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// IngestionRequest is the input for one ingestion run.
type IngestionRequest struct {
	IndexName    string `json:"index_name"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
}

// Ingestion is the observable record of one background ingestion run.
type Ingestion struct {
	ID           string         `json:"id"`
	Collection   string         `json:"index_name"`
	State        IngestionState `json:"state"`
	ChunkSize    int            `json:"chunk_size"`
	ChunkOverlap int            `json:"chunk_overlap"`
	Documents    int            `json:"documents"`
	Chunks       int            `json:"chunks"`
	Added        int            `json:"added"`
	Skipped      int            `json:"skipped"`
	Batches      int            `json:"batches"`
	Message      string         `json:"message,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
}

// Succeeded reports whether the run finished without error.
func (i *Ingestion) Succeeded() bool {
	return i.State == StateDone
}

// Duration is the wall time from start to finish, or to now while running.
func (i *Ingestion) Duration() time.Duration {
	if i.StartedAt == nil {
		return 0
	}
	if i.FinishedAt != nil {
		return i.FinishedAt.Sub(*i.StartedAt)
	}
	return time.Since(*i.StartedAt)
}
