package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/ragindex/internal/apperr"
)

func fakeOllama(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		case "/api/embed":
		default:
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"model \"nomic-embed-text\" not found"}`))
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model: got %q", req.Model)
		}
		resp := ollamaEmbedResponse{Model: req.Model}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i + 1), 0, 1})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := fakeOllama(t, http.StatusOK)
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "", 768, 5*time.Second)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || vecs[1][0] != 2 {
		t.Errorf("vecs: %v", vecs)
	}
	if e.Dimensions() != 3 {
		t.Errorf("dimensions should follow the server, got %d", e.Dimensions())
	}
	v, err := e.Embed(context.Background(), "single")
	if err != nil || len(v) != 3 {
		t.Errorf("Embed: %v %v", v, err)
	}
	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOllamaEmbedder_errorStatus(t *testing.T) {
	srv := fakeOllama(t, http.StatusNotFound)
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 0, 5*time.Second)
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
}

func TestOllamaEmbedder_unreachable(t *testing.T) {
	srv := fakeOllama(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	e := NewOllamaEmbedder(url, "nomic-embed-text", 0, time.Second)
	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
}
