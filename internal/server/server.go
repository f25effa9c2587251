// Package server provides the HTTP API for ragindex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/collection"
	"github.com/hyperjump/ragindex/internal/config"
	"github.com/hyperjump/ragindex/internal/metrics"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// Ingestions schedules and reports background ingestion runs.
type Ingestions interface {
	Submit(req models.IngestionRequest) (*models.Ingestion, error)
	Get(id string) (*models.Ingestion, error)
	List() []*models.Ingestion
}

// Searcher answers tiered queries.
type Searcher interface {
	Search(ctx context.Context, query, indexName string, k int) (*models.TieredResults, error)
}

// Collections opens collection handles and lists stored collections.
type Collections interface {
	Open(ctx context.Context, name string) (*collection.Collection, error)
	Stored(ctx context.Context) ([]string, error)
}

// WatchService reports what the data directory watcher is doing. Nil means watching is off.
type WatchService interface {
	Directory() string
	Collections() []string
}

// Server is the HTTP server for the ragindex API.
type Server struct {
	ingestions  Ingestions
	searcher    Searcher
	collections Collections
	watch       WatchService
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	ingestions Ingestions,
	searcher Searcher,
	collections Collections,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
) *Server {
	return &Server{
		ingestions:  ingestions,
		searcher:    searcher,
		collections: collections,
		watch:       watch,
		config:      cfg,
		logger:      utils.OrNop(logger),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Post("/embed", s.handleEmbed)
		r.Post("/search", s.handleSearch)
		r.Get("/ingestions", s.handleListIngestions)
		r.Get("/ingestions/{id}", s.handleGetIngestion)
		r.Get("/collections", s.handleListCollections)
		r.Get("/collections/{name}", s.handleGetCollection)
		r.Get("/status", s.handleStatus)
		r.Get("/watch", s.handleWatch)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
