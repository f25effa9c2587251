// Package search answers queries against a collection with one independent result list
// per permission tier.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/collection"
	"github.com/hyperjump/ragindex/internal/metrics"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// DefaultTiers are searched when no tiers are configured.
var DefaultTiers = []models.Permission{models.PermissionEditor, models.PermissionOwner}

// Opener hands out connected collection handles.
type Opener interface {
	Open(ctx context.Context, name string) (*collection.Collection, error)
}

// Searcher runs tiered searches through a collection opener.
type Searcher struct {
	opener Opener
	tiers  []models.Permission
	logger *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithTiers sets the permission tiers searched, in response order.
func WithTiers(tiers ...models.Permission) Option {
	return func(s *Searcher) {
		if len(tiers) > 0 {
			s.tiers = append([]models.Permission(nil), tiers...)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// NewSearcher returns a Searcher over opener.
func NewSearcher(opener Opener, opts ...Option) *Searcher {
	s := &Searcher{opener: opener, tiers: DefaultTiers}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Tiers returns the searched tiers in order.
func (s *Searcher) Tiers() []models.Permission {
	return append([]models.Permission(nil), s.tiers...)
}

// Search returns the k nearest chunks of indexName for each tier, where a tier matches
// chunks whose flag for that permission is true. Tier lists are neither merged nor
// deduplicated. The first failing tier cancels the rest.
func (s *Searcher) Search(ctx context.Context, query, indexName string, k int) (*models.TieredResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.InvalidArgument("query must not be empty")
	}
	if k <= 0 {
		return nil, apperr.InvalidArgument("k must be positive, got %d", k)
	}
	coll, err := s.opener.Open(ctx, indexName)
	if err != nil {
		return nil, err
	}

	lists := make([][]models.SearchResult, len(s.tiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, tier := range s.tiers {
		i, tier := i, tier
		g.Go(func() error {
			start := time.Now()
			res, err := coll.Search(gctx, query, k, models.PermissionFilter(tier, true))
			metrics.SearchDuration.WithLabelValues(string(tier)).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.SearchesTotal.WithLabelValues(string(tier), "error").Inc()
				return fmt.Errorf("search %s tier: %w", tier, err)
			}
			metrics.SearchesTotal.WithLabelValues(string(tier), "ok").Inc()
			lists[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("search failed",
			zap.String("collection", indexName),
			zap.String("query", utils.Truncate(query, 80)),
			zap.Error(err))
		return nil, err
	}

	out := &models.TieredResults{
		Tiers:   s.Tiers(),
		Results: make(map[models.Permission][]models.SearchResult, len(s.tiers)),
	}
	counts := make([]zap.Field, 0, len(s.tiers)+2)
	counts = append(counts, zap.String("collection", indexName), zap.Int("k", k))
	for i, tier := range s.tiers {
		out.Results[tier] = lists[i]
		counts = append(counts, zap.Int("results_"+string(tier), len(lists[i])))
	}
	s.logger.Debug("search completed", counts...)
	return out, nil
}
