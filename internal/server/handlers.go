package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/internal/storage"
)

const (
	embedStartedMessage = "Upload started in background"
	internalErrorDetail = "Internal server error"
)

type embedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	req := models.IngestionRequest{
		ChunkSize:    s.config.Ingest.DefaultChunkSize,
		ChunkOverlap: s.config.Ingest.DefaultChunkOverlap,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.IndexName = strings.TrimSpace(req.IndexName)
	if req.IndexName == "" {
		s.respondError(w, http.StatusBadRequest, "index_name is required")
		return
	}
	s.logger.Debug("embed request",
		zap.String("index_name", req.IndexName),
		zap.Int("chunk_size", req.ChunkSize),
		zap.Int("chunk_overlap", req.ChunkOverlap))

	rec, err := s.ingestions.Submit(req)
	if err != nil {
		s.fail(w, "schedule ingestion", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, embedResponse{
		Success: true,
		Message: embedStartedMessage,
		TaskID:  rec.ID,
	})
}

type searchRequest struct {
	Query     string `json:"query"`
	IndexName string `json:"index_name"`
	K         int    `json:"k"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{K: s.config.Search.DefaultK}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("index_name", req.IndexName),
		zap.String("query", req.Query),
		zap.Int("k", req.K))

	res, err := s.searcher.Search(r.Context(), req.Query, req.IndexName, req.K)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	body := map[string]any{"success": true}
	for _, tier := range res.Tiers {
		body["results_"+string(tier)] = res.Tier(tier)
	}
	s.respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"ingestions": s.ingestions.List()})
}

func (s *Server) handleGetIngestion(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ingestions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get ingestion", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.collections.Stored(r.Context())
	if err != nil {
		s.fail(w, "list collections", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"collections": names})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	names, err := s.collections.Stored(r.Context())
	if err != nil {
		s.fail(w, "list collections", err)
		return
	}
	if !contains(names, name) {
		s.respondError(w, http.StatusNotFound, "collection not found")
		return
	}
	coll, err := s.collections.Open(r.Context(), name)
	if err != nil {
		s.fail(w, "open collection", err)
		return
	}
	count, err := coll.Count(r.Context())
	if err != nil {
		s.fail(w, "count collection", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"name": name, "count": count})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names, err := s.collections.Stored(ctx)
	if err != nil {
		s.fail(w, "status: list collections", err)
		return
	}
	var chunks int64
	for _, name := range names {
		coll, err := s.collections.Open(ctx, name)
		if err != nil {
			s.fail(w, "status: open collection", err)
			return
		}
		n, err := coll.Count(ctx)
		if err != nil {
			s.fail(w, "status: count collection", err)
			return
		}
		chunks += n
	}
	running := 0
	for _, rec := range s.ingestions.List() {
		if !rec.State.Terminal() {
			running++
		}
	}
	resp := map[string]any{
		"collections":        len(names),
		"chunks":             chunks,
		"running_ingestions": running,
		"config": map[string]any{
			"env":             s.config.Env,
			"storage_driver":  s.config.Storage.Driver,
			"embedding_model": s.config.Embedding.Model,
			"data_dir":        s.config.Ingest.DataDir,
			"chunk_size":      s.config.Ingest.DefaultChunkSize,
			"chunk_overlap":   s.config.Ingest.DefaultChunkOverlap,
			"batch_size":      s.config.Ingest.BatchSize,
			"default_k":       s.config.Search.DefaultK,
		},
	}
	if s.config.Storage.Driver == "sqlite" {
		if diskBytes, err := storage.DiskUsageBytes(storage.SQLiteFiles(s.config.Storage.Path)...); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"enabled":     true,
		"directory":   s.watch.Directory(),
		"collections": s.watch.Collections(),
	})
}

// fail maps err to a status. Client errors echo the error; server errors never do.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, internalErrorDetail)
		return
	}
	s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"detail": message})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
