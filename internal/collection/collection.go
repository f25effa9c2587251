// Package collection adapts a vector store and an embedder into named, searchable
// collections of chunks.
package collection

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/embedding"
	"github.com/hyperjump/ragindex/internal/metrics"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/internal/storage"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// DefaultBatchSize bounds how many chunks are embedded and written per store call.
const DefaultBatchSize = 100

// NoNewDocuments is the AddResult message when every chunk is already stored.
const NoNewDocuments = "No new valid documents to add"

// 3 to 63 characters, alphanumeric at both ends, '.', '_' and '-' inside.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,61}[A-Za-z0-9]$`)

// ValidateName checks a collection name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return apperr.InvalidArgument("invalid collection name %q: use 3-63 characters [A-Za-z0-9._-], starting and ending alphanumeric", name)
	}
	return nil
}

// AddResult reports what AddDocuments wrote.
type AddResult struct {
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
	Batches int    `json:"batches"`
	Message string `json:"message,omitempty"`
}

// Collection is a handle on one named collection.
type Collection struct {
	name      string
	store     storage.Store
	embedder  embedding.Embedder
	batchSize int
	logger    *zap.Logger

	mu        sync.Mutex
	connected bool
}

// Option configures a Collection.
type Option func(*Collection)

// WithBatchSize sets the maximum number of chunks per write. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// New returns an unconnected handle.
func New(store storage.Store, name string, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	c := &Collection{
		name:      name,
		store:     store,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger).With(zap.String("collection", name))
	return c, nil
}

// Connect returns a connected handle, creating the collection in store if needed.
func Connect(ctx context.Context, store storage.Store, name string, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	c, err := New(store, name, embedder, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect opens the collection. It is a no-op on a connected handle.
func (c *Collection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if err := c.store.EnsureCollection(ctx, c.name); err != nil {
		return fmt.Errorf("connect %s: %w", c.name, err)
	}
	c.connected = true
	c.logger.Debug("collection connected")
	return nil
}

// Connected reports whether Connect has succeeded.
func (c *Collection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Close marks the handle disconnected. The shared store stays open.
func (c *Collection) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *Collection) ensureConnected(ctx context.Context) error {
	if c.Connected() {
		return nil
	}
	return c.Connect(ctx)
}

// AddDocuments applies overlay to every chunk, drops chunks whose ID is already stored
// (or repeated earlier in chunks), and writes the rest in batches. Chunks must carry IDs.
//
// Batches already written stay written if a later batch fails.
func (c *Collection) AddDocuments(ctx context.Context, chunks []models.Chunk, overlay models.Permissions) (AddResult, error) {
	fresh, err := c.Diff(ctx, chunks, overlay)
	if err != nil {
		return AddResult{}, err
	}
	result, err := c.Upsert(ctx, fresh)
	result.Skipped += len(chunks) - len(fresh)
	return result, err
}

// Diff applies overlay to chunks in place and returns those not yet stored, keeping the
// first of any repeated ID.
func (c *Collection) Diff(ctx context.Context, chunks []models.Chunk, overlay models.Permissions) ([]models.Chunk, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	for i := range chunks {
		if chunks[i].ID == "" {
			return nil, apperr.InvalidArgument("chunk %d has no id", i)
		}
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = models.Metadata{}
		}
		overlay.Apply(chunks[i].Metadata)
	}

	stored, err := c.store.IDs(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("list ids for %s: %w", c.name, err)
	}
	seen := make(map[string]bool, len(stored)+len(chunks))
	for _, id := range stored {
		seen[id] = true
	}
	fresh := make([]models.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		fresh = append(fresh, ch)
	}
	c.logger.Info("diffed chunks",
		zap.Int("stored", len(stored)),
		zap.Int("incoming", len(chunks)),
		zap.Int("new", len(fresh)))
	return fresh, nil
}

// Upsert embeds and writes chunks in batches of at most the handle's batch size.
// The store ignores IDs it already holds; those count as skipped.
func (c *Collection) Upsert(ctx context.Context, chunks []models.Chunk) (AddResult, error) {
	var result AddResult
	if len(chunks) == 0 {
		result.Message = NoNewDocuments
		return result, nil
	}
	if err := c.ensureConnected(ctx); err != nil {
		return result, err
	}
	for start := 0; start < len(chunks); start += c.batchSize {
		end := start + c.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		n, err := c.writeBatch(ctx, chunks[start:end])
		if err != nil {
			return result, fmt.Errorf("write batch %d (chunks %d-%d) to %s: %w", result.Batches+1, start, end-1, c.name, err)
		}
		result.Added += n
		result.Skipped += (end - start) - n
		result.Batches++
		metrics.UpsertBatches.WithLabelValues(c.name).Inc()
		metrics.ChunksUpserted.WithLabelValues(c.name).Add(float64(n))
		c.logger.Debug("wrote batch", zap.Int("batch", result.Batches), zap.Int("added", n))
	}
	result.Message = fmt.Sprintf("Added %d documents in %d batches", result.Added, result.Batches)
	return result, nil
}

func (c *Collection) writeBatch(ctx context.Context, batch []models.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Content
	}
	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vecs) != len(batch) {
		return 0, apperr.ProviderUnavailable("embed batch", fmt.Errorf("got %d vectors for %d chunks", len(vecs), len(batch)))
	}
	records := make([]storage.Record, len(batch))
	for i, ch := range batch {
		records[i] = storage.Record{ID: ch.ID, Content: ch.Content, Metadata: ch.Metadata, Vector: vecs[i]}
	}
	return c.store.Add(ctx, c.name, records)
}

// Search embeds query and returns the k nearest entries matching filter.
func (c *Collection) Search(ctx context.Context, query string, k int, filter *models.Filter) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, apperr.InvalidArgument("k must be positive, got %d", k)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return c.SearchVector(ctx, vec, k, filter)
}

// SearchVector returns the k nearest entries to vec matching filter.
func (c *Collection) SearchVector(ctx context.Context, vec []float32, k int, filter *models.Filter) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, apperr.InvalidArgument("k must be positive, got %d", k)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	matches, err := c.store.Query(ctx, c.name, vec, k, filter.Terms())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	results := make([]models.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = models.SearchResult{ID: m.ID, Content: m.Content, Metadata: m.Metadata, Score: m.Score}
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return 0, err
	}
	return c.store.Count(ctx, c.name)
}
