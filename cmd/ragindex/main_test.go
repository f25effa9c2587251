package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/config"
	"github.com/hyperjump/ragindex/internal/models"
)

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"refunds"}, "refunds"},
		{"multiple words", []string{"reset", "password"}, "reset password"},
		{"single quoted phrase", []string{"reset password"}, "reset password"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigFile(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		writeFile(t, path, "server:\n  port: 7000\n")
		cfg, resolved, err := readConfigFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if resolved != path || cfg.Server.Port != 7000 {
			t.Errorf("resolved=%q port=%d", resolved, cfg.Server.Port)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		if _, _, err := readConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for a missing explicit config")
		}
	})

	t.Run("default falls back to cwd config.yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "config.yaml"), "search:\n  default_k: 7\n")
		chdir(t, dir)
		cfg, resolved, err := readConfigFile(defaultConfigPath)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(resolved) != "config.yaml" || cfg.Search.DefaultK != 7 {
			t.Errorf("resolved=%q default_k=%d", resolved, cfg.Search.DefaultK)
		}
	})

	t.Run("default without any file uses built-in defaults", func(t *testing.T) {
		chdir(t, t.TempDir())
		cfg, resolved, err := readConfigFile(defaultConfigPath)
		if err != nil {
			t.Fatal(err)
		}
		if resolved != "" {
			t.Errorf("resolved = %q, want empty", resolved)
		}
		if cfg.Server.Port != config.DefaultPort || cfg.Embedding.Model != config.DefaultModel {
			t.Errorf("defaults not applied: %+v", cfg)
		}
	})
}

func TestLoadConfig_environment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("PORT", "6001")
	t.Setenv("OPENAI_API_URL", "")
	t.Setenv("env", "")
	writeFile(t, filepath.Join(dir, ".env"), "OPENAI_API_URL=http://embed.internal:11434\nenv=development\n")

	cfg, _, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 6001 {
		t.Errorf("port = %d, want 6001", cfg.Server.Port)
	}
	if cfg.Embedding.BaseURL != "http://embed.internal:11434" {
		t.Errorf("base url = %q", cfg.Embedding.BaseURL)
	}
	if !cfg.IsDevelopment() || !cfg.Debug {
		t.Errorf("env=development should enable debug, got env=%q debug=%v", cfg.Env, cfg.Debug)
	}
}

func TestLoadConfig_invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "not-a-number")
	_, _, err := loadConfig(defaultConfigPath)
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Embedding.Driver = "mock"
	cfg.Embedding.Dimensions = 32
	cfg.Ingest.DataDir = t.TempDir()
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func TestInitializeComponents_ingestAndSearch(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Ingest.DataDir, "faq.txt"),
		"Refunds are issued within five business days.\n\nPasswords can be reset from the login page.")

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer c.Close(cfg.Server.ShutdownTimeout)

	ctx := context.Background()
	req := models.IngestionRequest{IndexName: "support-docs", ChunkSize: 60, ChunkOverlap: 10}
	rec, err := c.Manager.RunSync(ctx, req)
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if rec.State != models.StateDone || rec.Added == 0 {
		t.Fatalf("first run = %+v", rec)
	}

	again, err := c.Manager.RunSync(ctx, req)
	if err != nil {
		t.Fatalf("second RunSync: %v", err)
	}
	if again.Added != 0 || again.Skipped != rec.Added {
		t.Errorf("second run should add nothing, got %+v", again)
	}

	res, err := c.Searcher.Search(ctx, "refunds", "support-docs", cfg.Search.DefaultK)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := res.Tier(models.PermissionEditor); len(got) != 0 {
		t.Errorf("ingested chunks are editor=false, editor tier should be empty, got %d", len(got))
	}
	if got := res.Tier(models.PermissionOwner); len(got) == 0 || len(got) > cfg.Search.DefaultK {
		t.Errorf("owner tier has %d results, want 1..%d", len(got), cfg.Search.DefaultK)
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := testConfig(t)
	sc := statusConfig(cfg)
	if sc.StorageDriver != "memory" || sc.ChunkSize != config.DefaultChunkSize || sc.DefaultK != config.DefaultK {
		t.Errorf("statusConfig = %+v", sc)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
