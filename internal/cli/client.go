package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperjump/ragindex/internal/models"
)

// DefaultServerURL is where the CLI looks for a running server.
const DefaultServerURL = "http://localhost:5002"

const resultsPrefix = "results_"

// Client calls the HTTP API of a running ragindex server. Commands use it instead of
// opening the store directly, which would contend with the server for the database.
type Client struct {
	http *resty.Client
}

type errorBody struct {
	Detail string `json:"detail"`
}

// NewClient returns a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Client{http: c}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&errorBody{})
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*errorBody); ok && e.Detail != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode(), e.Detail)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// Search runs a tiered search on the server. A nil k leaves the choice to the server.
func (c *Client) Search(ctx context.Context, query, indexName string, k *int) (*models.TieredResults, error) {
	body := map[string]any{"query": query, "index_name": indexName}
	if k != nil {
		body["k"] = *k
	}
	var raw map[string]json.RawMessage
	resp, err := c.request(ctx).SetBody(body).SetResult(&raw).Post("/api/search")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return decodeTiered(raw)
}

// decodeTiered reads every results_<tier> key. Tiers come back in the server's default
// order when known, then alphabetically.
func decodeTiered(raw map[string]json.RawMessage) (*models.TieredResults, error) {
	out := &models.TieredResults{Results: make(map[models.Permission][]models.SearchResult)}
	for key, value := range raw {
		if !strings.HasPrefix(key, resultsPrefix) {
			continue
		}
		tier := models.Permission(strings.TrimPrefix(key, resultsPrefix))
		var results []models.SearchResult
		if err := json.Unmarshal(value, &results); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out.Tiers = append(out.Tiers, tier)
		out.Results[tier] = results
	}
	sort.Slice(out.Tiers, func(i, j int) bool {
		ri, rj := tierRank(out.Tiers[i]), tierRank(out.Tiers[j])
		if ri != rj {
			return ri < rj
		}
		return out.Tiers[i] < out.Tiers[j]
	})
	return out, nil
}

func tierRank(p models.Permission) int {
	for i, known := range models.AllPermissions {
		if p == known {
			return i
		}
	}
	return len(models.AllPermissions)
}

// Embed schedules an ingestion on the server and returns its task ID.
func (c *Client) Embed(ctx context.Context, req models.IngestionRequest) (string, error) {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		TaskID  string `json:"task_id"`
	}
	resp, err := c.request(ctx).SetBody(req).SetResult(&out).Post("/api/embed")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	if !out.Success || out.TaskID == "" {
		return "", fmt.Errorf("server did not accept the ingestion: %s", out.Message)
	}
	return out.TaskID, nil
}

// Ingestion fetches the record of one ingestion run.
func (c *Client) Ingestion(ctx context.Context, id string) (*models.Ingestion, error) {
	var out models.Ingestion
	resp, err := c.request(ctx).SetResult(&out).Get("/api/ingestions/" + url.PathEscape(id))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitIngestion polls the run until it reaches a terminal state or ctx ends.
func (c *Client) WaitIngestion(ctx context.Context, id string, interval time.Duration) (*models.Ingestion, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		rec, err := c.Ingestion(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec.State.Terminal() {
			return rec, nil
		}
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Collections lists the collections stored on the server with their counts.
func (c *Client) Collections(ctx context.Context) ([]CollectionInfo, error) {
	var list struct {
		Collections []string `json:"collections"`
	}
	resp, err := c.request(ctx).SetResult(&list).Get("/api/collections")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	infos := make([]CollectionInfo, 0, len(list.Collections))
	for _, name := range list.Collections {
		var info CollectionInfo
		resp, err := c.request(ctx).SetResult(&info).Get("/api/collections/" + url.PathEscape(name))
		if err := checkResponse(resp, err); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Status fetches index statistics from the server.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	resp, err := c.request(ctx).SetResult(&out).Get("/api/status")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
