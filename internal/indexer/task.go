package indexer

import (
	"sync"
	"time"

	"github.com/hyperjump/ragindex/internal/models"
)

// Task is the mutable, concurrency-safe record behind one models.Ingestion.
type Task struct {
	mu  sync.Mutex
	rec models.Ingestion
}

func newTask(id string, req models.IngestionRequest) *Task {
	return &Task{rec: models.Ingestion{
		ID:           id,
		Collection:   req.IndexName,
		State:        models.StateIdle,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
		CreatedAt:    time.Now().UTC(),
	}}
}

// ID returns the task ID.
func (t *Task) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec.ID
}

// Snapshot returns a copy of the current record.
func (t *Task) Snapshot() *models.Ingestion {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.rec
	if t.rec.StartedAt != nil {
		started := *t.rec.StartedAt
		rec.StartedAt = &started
	}
	if t.rec.FinishedAt != nil {
		finished := *t.rec.FinishedAt
		rec.FinishedAt = &finished
	}
	rec.DurationMS = rec.Duration().Milliseconds()
	return &rec
}

func (t *Task) update(fn func(*models.Ingestion)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.rec)
}

func (t *Task) transition(state models.IngestionState) {
	t.update(func(r *models.Ingestion) {
		if r.StartedAt == nil && state != models.StateIdle {
			now := time.Now().UTC()
			r.StartedAt = &now
		}
		r.State = state
	})
}

func (t *Task) finish(err error) {
	t.update(func(r *models.Ingestion) {
		now := time.Now().UTC()
		if r.StartedAt == nil {
			r.StartedAt = &now
		}
		r.FinishedAt = &now
		r.DurationMS = now.Sub(*r.StartedAt).Milliseconds()
		if err != nil {
			r.State = models.StateFailed
			r.Error = err.Error()
			return
		}
		r.State = models.StateDone
	})
}

func (t *Task) terminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec.State.Terminal()
}
