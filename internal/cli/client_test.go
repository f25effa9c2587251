package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/ragindex/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/search" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["query"] != "refunds" || req["index_name"] != "docs" || req["k"] != float64(3) {
			t.Errorf("request body = %v", req)
		}
		writeBody(w, http.StatusOK, map[string]any{
			"success":        true,
			"results_owner":  []models.SearchResult{{ID: "a.pdf:0:0", Content: "refund policy", Score: 0.8}},
			"results_editor": []models.SearchResult{},
		})
	})

	k := 3
	res, err := c.Search(context.Background(), "refunds", "docs", &k)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Tiers) != 2 || res.Tiers[0] != models.PermissionEditor || res.Tiers[1] != models.PermissionOwner {
		t.Errorf("tiers = %v, want [editor owner]", res.Tiers)
	}
	if got := res.Tier(models.PermissionOwner); len(got) != 1 || got[0].ID != "a.pdf:0:0" {
		t.Errorf("owner results = %+v", got)
	}
	if got := res.Tier(models.PermissionEditor); len(got) != 0 {
		t.Errorf("editor results = %+v", got)
	}
}

func TestClient_errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   string
	}{
		{"detail", http.StatusUnprocessableEntity, map[string]string{"detail": "k must be positive, got 0"}, "422: k must be positive"},
		{"internal", http.StatusInternalServerError, map[string]string{"detail": "Internal server error"}, "500: Internal server error"},
		{"no detail", http.StatusNotFound, map[string]string{"other": "x"}, "server returned 404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, tt.status, tt.body)
			})
			k := 0
			_, err := c.Search(context.Background(), "q", "docs", &k)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestClient_EmbedAndWait(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/embed":
			var req models.IngestionRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.IndexName != "docs" || req.ChunkSize != 200 {
				t.Errorf("embed request = %+v", req)
			}
			writeBody(w, http.StatusAccepted, map[string]any{
				"success": true, "message": "Upload started in background", "task_id": "task-1",
			})
		case r.Method == http.MethodGet && r.URL.Path == "/api/ingestions/task-1":
			state := models.StateUpserting
			if polls.Add(1) >= 2 {
				state = models.StateDone
			}
			writeBody(w, http.StatusOK, models.Ingestion{ID: "task-1", Collection: "docs", State: state})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	id, err := c.Embed(ctx, models.IngestionRequest{IndexName: "docs", ChunkSize: 200, ChunkOverlap: 20})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if id != "task-1" {
		t.Fatalf("task id = %q", id)
	}
	rec, err := c.WaitIngestion(ctx, id, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitIngestion: %v", err)
	}
	if rec.State != models.StateDone || polls.Load() < 2 {
		t.Errorf("state = %s after %d polls", rec.State, polls.Load())
	}
}

func TestClient_CollectionsAndStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/collections":
			writeBody(w, http.StatusOK, map[string]any{"collections": []string{"docs"}})
		case "/api/collections/docs":
			writeBody(w, http.StatusOK, map[string]any{"name": "docs", "count": 7})
		case "/api/status":
			writeBody(w, http.StatusOK, map[string]any{
				"collections": 1, "chunks": 7, "running_ingestions": 0,
				"config": map[string]any{"storage_driver": "sqlite", "default_k": 2},
			})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	infos, err := c.Collections(ctx)
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(infos) != 1 || infos[0] != (CollectionInfo{Name: "docs", Count: 7}) {
		t.Errorf("collections = %+v", infos)
	}
	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Chunks != 7 || st.Config == nil || st.Config.StorageDriver != "sqlite" || st.Config.DefaultK != 2 {
		t.Errorf("status = %+v", st)
	}
}
