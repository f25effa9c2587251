package vector

import (
	"fmt"
	"sync"
)

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// IDs are unique: adding an ID that is already present is a no-op.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	pos        map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an index for vectors of the given dimension. Zero means the
// dimension is fixed by the first Add.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		pos:        make(map[string]int),
	}, nil
}

// Add stores vectors under ids, skipping IDs already present. It returns how many were added.
func (m *MemoryIndex) Add(ids []string, vectors [][]float32) (int, error) {
	if len(ids) != len(vectors) {
		return 0, fmt.Errorf("ids and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range vectors {
		if m.dimensions == 0 {
			m.dimensions = len(vectors[i])
		}
		if len(vectors[i]) != m.dimensions {
			return 0, fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
	}
	added := 0
	for i, id := range ids {
		if _, ok := m.pos[id]; ok {
			continue
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		m.pos[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
		added++
	}
	return added, nil
}

// Has reports whether id is stored.
func (m *MemoryIndex) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pos[id]
	return ok
}

// IDs returns a copy of the stored IDs in insertion order.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.ids...)
}

// Search returns up to k hits by cosine similarity. keep, when non-nil, restricts candidates.
func (m *MemoryIndex) Search(query []float32, k int, keep func(id string) bool) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	hits := make([]Hit, 0, len(m.ids))
	for i, vec := range m.vectors {
		if keep != nil && !keep(m.ids[i]) {
			continue
		}
		hits = append(hits, Hit{ID: m.ids[i], Score: Cosine(query, vec)})
	}
	return TopK(hits, k), nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
