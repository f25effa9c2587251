package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/metrics"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// GuardOptions configures a Guarded embedder.
type GuardOptions struct {
	Name        string
	RateLimit   float64 // requests per second; 0 disables limiting
	Burst       int
	MaxFailures uint32        // consecutive failures that open the breaker
	OpenTimeout time.Duration // how long the breaker stays open before probing
	Logger      *zap.Logger
}

// Guarded throttles calls to an Embedder and fails fast while the provider is down.
// It never retries.
type Guarded struct {
	next    Embedder
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGuarded wraps next with a rate limiter and a circuit breaker.
func NewGuarded(next Embedder, opts GuardOptions) *Guarded {
	logger := utils.OrNop(opts.Logger)
	if opts.Name == "" {
		opts.Name = "embedding"
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	g := &Guarded{next: next, logger: logger}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	maxFailures := opts.MaxFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// Embed embeds a single text through the guard.
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, apperr.ProviderUnavailable("embed", fmt.Errorf("got %d vectors for 1 text", len(vecs)))
	}
	return vecs[0], nil
}

// EmbedBatch waits for the limiter, then calls the wrapped embedder unless the breaker is open.
func (g *Guarded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.EmbeddingRequests.WithLabelValues("rejected").Inc()
			return nil, apperr.ProviderUnavailable("rate limit", err)
		}
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.EmbedBatch(ctx, texts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.EmbeddingRequests.WithLabelValues("rejected").Inc()
			return nil, apperr.ProviderUnavailable("circuit breaker", err)
		}
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequests.WithLabelValues("ok").Inc()
	return out.([][]float32), nil
}

// State reports the breaker state (closed, half-open, open).
func (g *Guarded) State() string {
	return g.breaker.State().String()
}

// Dimensions returns the wrapped embedder's dimension.
func (g *Guarded) Dimensions() int { return g.next.Dimensions() }

// Close closes the wrapped embedder.
func (g *Guarded) Close() error { return g.next.Close() }
