package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/collection"
	"github.com/hyperjump/ragindex/internal/metrics"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/internal/splitter"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// DefaultHistoryLimit is how many finished tasks a Manager remembers.
const DefaultHistoryLimit = 100

// ErrShuttingDown is returned by Submit after Shutdown has begun.
var ErrShuttingDown = errors.New("ingestion manager is shutting down")

// Manager schedules ingestion runs in the background and keeps their records.
type Manager struct {
	ingestor     *Ingestor
	historyLimit int
	logger       *zap.Logger

	mu       sync.Mutex
	tasks    map[string]*Task
	order    []string
	stopping bool
	wg       sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHistoryLimit bounds the number of finished tasks kept for Get and List.
func WithHistoryLimit(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager that runs tasks with ingestor.
func NewManager(ingestor *Ingestor, opts ...ManagerOption) *Manager {
	m := &Manager{
		ingestor:     ingestor,
		historyLimit: DefaultHistoryLimit,
		tasks:        make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = utils.OrNop(m.logger)
	return m
}

// Validate checks req without scheduling anything.
func Validate(req models.IngestionRequest) error {
	if err := collection.ValidateName(req.IndexName); err != nil {
		return err
	}
	_, err := splitter.New(req.ChunkSize, req.ChunkOverlap)
	return err
}

// Submit validates req and starts it in the background. It returns the task record in
// state idle; the run itself is not tied to any caller's context.
func (m *Manager) Submit(req models.IngestionRequest) (*models.Ingestion, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	task, err := m.register(req)
	if err != nil {
		return nil, err
	}
	snap := task.Snapshot()
	go func() {
		defer m.wg.Done()
		m.run(context.Background(), task)
	}()
	m.logger.Info("ingestion scheduled",
		zap.String("task_id", snap.ID),
		zap.String("collection", req.IndexName),
		zap.Int("chunk_size", req.ChunkSize),
		zap.Int("chunk_overlap", req.ChunkOverlap))
	return snap, nil
}

// RunSync validates req and runs it on the calling goroutine.
func (m *Manager) RunSync(ctx context.Context, req models.IngestionRequest) (*models.Ingestion, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	task, err := m.register(req)
	if err != nil {
		return nil, err
	}
	defer m.wg.Done()
	err = m.run(ctx, task)
	return task.Snapshot(), err
}

func (m *Manager) register(req models.IngestionRequest) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return nil, ErrShuttingDown
	}
	task := newTask(uuid.New().String(), req)
	m.tasks[task.ID()] = task
	m.order = append(m.order, task.ID())
	m.wg.Add(1)
	return task, nil
}

func (m *Manager) run(ctx context.Context, task *Task) error {
	err := m.ingestor.Run(ctx, task)
	snap := task.Snapshot()
	metrics.IngestionsTotal.WithLabelValues(string(snap.State)).Inc()
	metrics.IngestionDuration.Observe(snap.Duration().Seconds())
	m.evict()
	return err
}

// evict drops the oldest finished tasks beyond the history limit. Running tasks are kept.
func (m *Manager) evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	finished := 0
	for _, id := range m.order {
		if m.tasks[id].terminal() {
			finished++
		}
	}
	if finished <= m.historyLimit {
		return
	}
	excess := finished - m.historyLimit
	kept := m.order[:0]
	for _, id := range m.order {
		if excess > 0 && m.tasks[id].terminal() {
			delete(m.tasks, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// Get returns a snapshot of the task with id.
func (m *Manager) Get(id string) (*models.Ingestion, error) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("ingestion %q", id)
	}
	return task.Snapshot(), nil
}

// List returns snapshots of known tasks, newest first.
func (m *Manager) List() []*models.Ingestion {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		tasks = append(tasks, m.tasks[m.order[i]])
	}
	m.mu.Unlock()

	out := make([]*models.Ingestion, len(tasks))
	for i, t := range tasks {
		out[i] = t.Snapshot()
	}
	return out
}

// Shutdown stops accepting tasks and waits for running ones to finish or ctx to end.
// Running tasks are not cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for ingestions: %w", ctx.Err())
	}
}
