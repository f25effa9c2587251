package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/internal/vector"
)

// MemoryStore implements Store in process memory. Contents are lost on Close.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	closed      bool
}

type memoryCollection struct {
	index   *vector.MemoryIndex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// EnsureCollection creates the collection if it does not exist.
func (s *MemoryStore) EnsureCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperr.StoreUnavailable("ensure collection", ErrClosed)
	}
	if _, ok := s.collections[name]; ok {
		return nil
	}
	idx, err := vector.NewMemoryIndex(0)
	if err != nil {
		return err
	}
	s.collections[name] = &memoryCollection{index: idx, records: make(map[string]Record)}
	return nil
}

// Collections returns all collection names in order.
func (s *MemoryStore) Collections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, apperr.StoreUnavailable("list collections", ErrClosed)
	}
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) collection(op, name string) (*memoryCollection, error) {
	if s.closed {
		return nil, apperr.StoreUnavailable(op, ErrClosed)
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, apperr.NotFound("collection %q", name)
	}
	return c, nil
}

// IDs returns the IDs stored in collection in insertion order.
func (s *MemoryStore) IDs(_ context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection("list ids", collection)
	if err != nil {
		return nil, err
	}
	return c.index.IDs(), nil
}

// Add inserts records, ignoring IDs already present.
func (s *MemoryStore) Add(_ context.Context, collection string, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection("add", collection)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(records))
	vecs := make([][]float32, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		vecs[i] = rec.Vector
	}
	added, err := c.index.Add(ids, vecs)
	if err != nil {
		return 0, apperr.InvalidArgument("%v", err)
	}
	for _, rec := range records {
		if _, ok := c.records[rec.ID]; ok {
			continue
		}
		c.records[rec.ID] = Record{ID: rec.ID, Content: rec.Content, Metadata: rec.Metadata.Clone()}
	}
	return added, nil
}

// Query returns the best k entries matching terms.
func (s *MemoryStore) Query(_ context.Context, collection string, query []float32, k int, terms []models.FilterTerm) ([]Match, error) {
	if k <= 0 {
		return nil, apperr.InvalidArgument("k must be positive, got %d", k)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection("query", collection)
	if err != nil {
		return nil, err
	}
	hits, err := c.index.Search(query, k, func(id string) bool {
		return matchesTerms(c.records[id].Metadata, terms)
	})
	if err != nil {
		return nil, apperr.InvalidArgument("%v", err)
	}
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		rec := c.records[h.ID]
		matches = append(matches, Match{ID: h.ID, Content: rec.Content, Metadata: rec.Metadata.Clone(), Score: h.Score})
	}
	return matches, nil
}

// Count returns the number of entries in collection.
func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection("count", collection)
	if err != nil {
		return 0, err
	}
	return int64(c.index.Size()), nil
}

// Close drops all contents.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.collections = nil
	return nil
}
