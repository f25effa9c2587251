package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/ragindex/internal/models"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []models.IngestionRequest
}

func (r *recordingSubmitter) Submit(req models.IngestionRequest) (*models.Ingestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if req.IndexName == "broken" {
		return nil, fmt.Errorf("rejected")
	}
	return &models.Ingestion{ID: fmt.Sprintf("task-%d", len(r.reqs)), Collection: req.IndexName}, nil
}

func (r *recordingSubmitter) snapshot() []models.IngestionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.IngestionRequest(nil), r.reqs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcher_DebouncedSubmitPerCollection(t *testing.T) {
	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w := NewWatcher(dir, []string{"handbook", "faq"}, sub,
		WithDebounce(50*time.Millisecond),
		WithExtensions(".txt"),
		WithChunking(200, 20))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d.txt", i)), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return len(sub.snapshot()) >= 2 })
	time.Sleep(150 * time.Millisecond)

	reqs := sub.snapshot()
	if len(reqs) != 2 {
		t.Fatalf("a burst of writes should trigger one round, got %d submissions", len(reqs))
	}
	names := []string{reqs[0].IndexName, reqs[1].IndexName}
	sort.Strings(names)
	if names[0] != "faq" || names[1] != "handbook" {
		t.Errorf("collections: %v", names)
	}
	if reqs[0].ChunkSize != 200 || reqs[0].ChunkOverlap != 20 {
		t.Errorf("chunking: %+v", reqs[0])
	}
}

func TestWatcher_ExtensionFilterAndHidden(t *testing.T) {
	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w := NewWatcher(dir, []string{"docs"}, sub, WithDebounce(30*time.Millisecond), WithExtensions(".pdf"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600)
	_ = os.WriteFile(filepath.Join(dir, ".draft.pdf"), []byte("x"), 0600)
	time.Sleep(150 * time.Millisecond)
	if n := len(sub.snapshot()); n != 0 {
		t.Fatalf("ignored files triggered %d submissions", n)
	}

	_ = os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("x"), 0600)
	waitFor(t, func() bool { return len(sub.snapshot()) == 1 })
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w := NewWatcher(dir, []string{"docs"}, sub, WithDebounce(30*time.Millisecond), WithExtensions(".md"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "team")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(sub.snapshot()) == 1 })

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(nested, "page.md"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(sub.snapshot()) == 2 })
}

func TestWatcher_StartErrorsAndStop(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), []string{"docs"}, &recordingSubmitter{})
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected error for a missing root")
	}

	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w = NewWatcher(dir, []string{"docs"}, sub, WithDebounce(100*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("second Start should be a no-op: %v", err)
	}
	_ = os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0600)
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	w.Stop()
	time.Sleep(200 * time.Millisecond)
	if n := len(sub.snapshot()); n != 0 {
		t.Errorf("Stop should drop the pending trigger, got %d submissions", n)
	}
	if w.Directory() != filepath.Clean(dir) || len(w.Collections()) != 1 {
		t.Errorf("Directory/Collections: %s %v", w.Directory(), w.Collections())
	}
}

func TestTrigger_continuesPastFailures(t *testing.T) {
	sub := &recordingSubmitter{}
	w := NewWatcher(t.TempDir(), []string{"broken", "docs"}, sub)
	w.Trigger()
	reqs := sub.snapshot()
	if len(reqs) != 2 || reqs[1].IndexName != "docs" || reqs[1].ChunkSize != 400 {
		t.Errorf("requests: %+v", reqs)
	}
}
