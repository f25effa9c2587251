// Package cli formats ragindex results for the terminal and talks to a running server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// previewLen caps how much chunk text is printed per result in text mode.
const previewLen = 200

// ParseOutputFormat accepts "text" or "json". Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// CollectionInfo is one row of the collections listing.
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// StatusConfig is the configuration summary included in Status.
type StatusConfig struct {
	Env            string `json:"env,omitempty"`
	StorageDriver  string `json:"storage_driver,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	DataDir        string `json:"data_dir,omitempty"`
	ChunkSize      int    `json:"chunk_size,omitempty"`
	ChunkOverlap   int    `json:"chunk_overlap,omitempty"`
	BatchSize      int    `json:"batch_size,omitempty"`
	DefaultK       int    `json:"default_k,omitempty"`
}

// Status is the shape of GET /api/status.
type Status struct {
	Collections       int           `json:"collections"`
	Chunks            int64         `json:"chunks"`
	RunningIngestions int           `json:"running_ingestions"`
	DiskUsageBytes    *int64        `json:"disk_usage_bytes,omitempty"`
	Config            *StatusConfig `json:"config,omitempty"`
}

// TieredJSON renders res the way the search endpoint does: one results_<tier> list per tier.
func TieredJSON(res *models.TieredResults) map[string]any {
	body := map[string]any{"success": true}
	if res == nil {
		return body
	}
	for _, tier := range res.Tiers {
		body["results_"+string(tier)] = res.Tier(tier)
	}
	return body
}

// WriteTieredResults writes one section per tier, in tier order.
func WriteTieredResults(w io.Writer, res *models.TieredResults, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, TieredJSON(res))
	}
	if res == nil || len(res.Tiers) == 0 {
		fmt.Fprintln(w, "No tiers searched.")
		return nil
	}
	for _, tier := range res.Tiers {
		results := res.Tier(tier)
		fmt.Fprintf(w, "\n--- %s (%d) ---\n", tier.Key(), len(results))
		if len(results) == 0 {
			fmt.Fprintln(w, "No results found.")
			continue
		}
		for i := range results {
			writeOneResult(w, i+1, results[i])
		}
	}
	fmt.Fprintln(w)
	return nil
}

func writeOneResult(w io.Writer, rank int, r models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%d] Score: %.4f | ID: %s\n", rank, r.Score, r.ID)
	if src, ok := r.Metadata[models.MetaSource]; ok {
		fmt.Fprintf(w, "Source: %v", src)
		if page, ok := r.Metadata[models.MetaPage]; ok {
			fmt.Fprintf(w, " (page %v)", page)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Content, previewLen))
}

// WriteIngestion writes the state of one ingestion run.
func WriteIngestion(w io.Writer, rec *models.Ingestion, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	fmt.Fprintf(w, "task:        %s\n", rec.ID)
	fmt.Fprintf(w, "index_name:  %s\n", rec.Collection)
	fmt.Fprintf(w, "state:       %s\n", rec.State)
	fmt.Fprintf(w, "documents:   %d\n", rec.Documents)
	fmt.Fprintf(w, "chunks:      %d   # after splitting\n", rec.Chunks)
	fmt.Fprintf(w, "added:       %d   # new chunks written\n", rec.Added)
	fmt.Fprintf(w, "skipped:     %d   # already stored\n", rec.Skipped)
	fmt.Fprintf(w, "batches:     %d\n", rec.Batches)
	if rec.Message != "" {
		fmt.Fprintf(w, "message:     %s\n", rec.Message)
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "error:       %s\n", rec.Error)
	}
	if rec.DurationMS > 0 {
		fmt.Fprintf(w, "duration_ms: %d\n", rec.DurationMS)
	}
	return nil
}

// WriteCollections writes the stored collections with their chunk counts.
func WriteCollections(w io.Writer, infos []CollectionInfo, format OutputFormat) error {
	if format == OutputJSON {
		if infos == nil {
			infos = []CollectionInfo{}
		}
		return writeJSON(w, map[string]any{"collections": infos})
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No collections.")
		return nil
	}
	width := 0
	for _, c := range infos {
		if len(c.Name) > width {
			width = len(c.Name)
		}
	}
	for _, c := range infos {
		fmt.Fprintf(w, "%-*s  %d\n", width, c.Name, c.Count)
	}
	return nil
}

// WriteStatus writes index statistics and the configuration summary.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "collections:        %d   # stored collections\n", s.Collections)
	fmt.Fprintf(w, "chunks:             %d   # chunks across all collections\n", s.Chunks)
	fmt.Fprintf(w, "running_ingestions: %d\n", s.RunningIngestions)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *s.DiskUsageBytes)
	}
	if c := s.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		if c.Env != "" {
			fmt.Fprintf(w, "env:                %s\n", c.Env)
		}
		fmt.Fprintf(w, "storage_driver:     %s\n", c.StorageDriver)
		fmt.Fprintf(w, "embedding_model:    %s\n", c.EmbeddingModel)
		fmt.Fprintf(w, "data_dir:           %s\n", c.DataDir)
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		fmt.Fprintf(w, "batch_size:         %d\n", c.BatchSize)
		fmt.Fprintf(w, "default_k:          %d\n", c.DefaultK)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
