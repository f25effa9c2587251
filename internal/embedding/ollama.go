package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperjump/ragindex/internal/apperr"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaEmbedder calls an Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	client     *resty.Client
	model      string
	dimensions atomic.Int64
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaEmbedder creates an embedder for baseURL and model. dimensions is a hint that is
// replaced by the size of the first vector the server returns.
func NewOllamaEmbedder(baseURL, model string, dimensions int, timeout time.Duration) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	e := &OllamaEmbedder{client: client, model: model}
	e.dimensions.Store(int64(dimensions))
	return e
}

// Model returns the configured model name.
func (e *OllamaEmbedder) Model() string {
	return e.model
}

// Embed embeds a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var out ollamaEmbedResponse
	var apiErr ollamaError
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(ollamaEmbedRequest{Model: e.model, Input: texts}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/embed")
	if err != nil {
		return nil, apperr.ProviderUnavailable("ollama embed", err)
	}
	if resp.IsError() {
		detail := apiErr.Error
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		return nil, apperr.ProviderUnavailable("ollama embed",
			fmt.Errorf("status %d: %s", resp.StatusCode(), detail))
	}
	if len(out.Embeddings) != len(texts) {
		return nil, apperr.ProviderUnavailable("ollama embed",
			fmt.Errorf("got %d embeddings for %d inputs", len(out.Embeddings), len(texts)))
	}
	if n := len(out.Embeddings[0]); n > 0 {
		e.dimensions.Store(int64(n))
	}
	return out.Embeddings, nil
}

// Ping checks that the server answers and lists its models.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	resp, err := e.client.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return apperr.ProviderUnavailable("ollama ping", err)
	}
	if resp.IsError() {
		return apperr.ProviderUnavailable("ollama ping", fmt.Errorf("status %d", resp.StatusCode()))
	}
	return nil
}

// Dimensions returns the last observed vector size, or the configured hint.
func (e *OllamaEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OllamaEmbedder) Close() error {
	return nil
}
