package collection

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/ragindex/internal/embedding"
	"github.com/hyperjump/ragindex/internal/storage"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// Registry owns one Collection handle per name over a shared store and embedder.
type Registry struct {
	store    storage.Store
	embedder embedding.Embedder
	opts     []Option
	logger   *zap.Logger

	mu      sync.Mutex
	handles map[string]*Collection
	closed  bool
	opening singleflight.Group
}

// NewRegistry returns an empty registry. opts are applied to every handle it opens.
func NewRegistry(store storage.Store, embedder embedding.Embedder, logger *zap.Logger, opts ...Option) *Registry {
	logger = utils.OrNop(logger)
	return &Registry{
		store:    store,
		embedder: embedder,
		opts:     append([]Option{WithLogger(logger)}, opts...),
		logger:   logger,
		handles:  make(map[string]*Collection),
	}
}

// Open returns the handle for name, connecting it on first use. Concurrent first opens
// of one name share a single connect; opens of other names do not wait on it.
func (r *Registry) Open(ctx context.Context, name string) (*Collection, error) {
	if c, ok, err := r.lookup(name); ok || err != nil {
		return c, err
	}
	v, err, _ := r.opening.Do(name, func() (any, error) {
		if c, ok, err := r.lookup(name); ok || err != nil {
			return c, err
		}
		c, err := Connect(ctx, r.store, name, r.embedder, r.opts...)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = c.Close()
			return nil, storage.ErrClosed
		}
		r.handles[name] = c
		r.logger.Info("opened collection", zap.String("collection", name))
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Collection), nil
}

func (r *Registry) lookup(name string) (*Collection, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, storage.ErrClosed
	}
	c, ok := r.handles[name]
	return c, ok, nil
}

// Get returns an open handle without connecting.
func (r *Registry) Get(name string) (*Collection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.handles[name]
	return c, ok
}

// Names lists open handles in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stored lists every collection in the store, open or not.
func (r *Registry) Stored(ctx context.Context) ([]string, error) {
	return r.store.Collections(ctx)
}

// Close closes every handle. Later calls to Open fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, c := range r.handles {
		_ = c.Close()
		delete(r.handles, name)
	}
	r.closed = true
	return nil
}
