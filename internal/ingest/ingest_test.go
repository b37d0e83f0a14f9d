package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/common"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestStoresOneCopyPerHash(t *testing.T) {
	src := t.TempDir()
	uploads := filepath.Join(t.TempDir(), "uploads")
	ing := NewFSIngestor(uploads, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	a := writeFile(t, src, "w2.pdf", "%PDF-1.4 same bytes")
	b := writeFile(t, src, "copy of w2.pdf", "%PDF-1.4 same bytes")

	first, err := ing.Ingest(ctx, a)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if first.Reused {
		t.Fatalf("first ingest should copy")
	}
	if want := first.Hash[:12] + "_w2.pdf"; filepath.Base(first.StoredPath) != want {
		t.Fatalf("stored name = %s, want %s", filepath.Base(first.StoredPath), want)
	}
	if first.MimeType != "application/pdf" || first.OriginalFilename != "w2.pdf" {
		t.Fatalf("unexpected metadata: %+v", first)
	}

	second, err := ing.Ingest(ctx, b)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !second.Reused || second.StoredPath != first.StoredPath || second.Hash != first.Hash {
		t.Fatalf("identical bytes should reuse the stored copy: %+v", second)
	}
	if second.OriginalFilename != "copy of w2.pdf" {
		t.Fatalf("original filename = %q", second.OriginalFilename)
	}

	entries, err := os.ReadDir(uploads)
	if err != nil {
		t.Fatalf("read uploads: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single stored copy, got %d", len(entries))
	}
}

func TestIngestRejectsUnsupportedFiles(t *testing.T) {
	ing := NewFSIngestor(t.TempDir(), nil)
	path := writeFile(t, t.TempDir(), "notes.txt", "hello")

	_, err := ing.Ingest(context.Background(), path)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := ing.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestHashFileIsContentDigest(t *testing.T) {
	dir := t.TempDir()
	h, err := HashFile(writeFile(t, dir, "a.png", "abc"))
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if h != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("sha256(abc) = %s", h)
	}
}

func TestWalkDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.pdf", "a")
	writeFile(t, root, "nested/b.JPG", "b")
	writeFile(t, root, "nested/c.png", "c")
	writeFile(t, root, "readme.md", "skip")
	writeFile(t, root, ".hidden/d.pdf", "d")
	writeFile(t, root, ".e.pdf", "e")

	var visited []string
	results, stats, err := WalkDirectory(context.Background(), root, true, func(_ context.Context, path string) (bool, error) {
		visited = append(visited, filepath.Base(path))
		switch filepath.Base(path) {
		case "c.png":
			return false, errors.New("model timeout")
		case "b.JPG":
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("WalkDirectory() error = %v", err)
	}
	if got := strings.Join(visited, ","); got != "a.pdf,b.JPG,c.png" {
		t.Fatalf("visited = %s", got)
	}
	if stats.Matched != 3 || stats.Succeeded != 2 || stats.Deduplicated != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(results) != 3 || results[2].Err != "model timeout" {
		t.Fatalf("results = %+v", results)
	}
}

func TestWalkDirectoryStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.pdf", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := WalkDirectory(ctx, root, false, func(context.Context, string) (bool, error) {
		t.Fatalf("visit must not run after cancel")
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestWatcherEmitsNewAndExistingFiles(t *testing.T) {
	root := t.TempDir()
	existing := writeFile(t, root, "old.pdf", "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("StartWatcher() error = %v", err)
	}

	next := func() string {
		t.Helper()
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); got != existing {
		t.Fatalf("initial scan emitted %s, want %s", got, existing)
	}

	writeFile(t, root, "ignored.txt", "x")
	fresh := writeFile(t, root, "new.png", "new")
	if got := next(); got != fresh {
		t.Fatalf("emitted %s, want %s", got, fresh)
	}

	cancel()
	for range events {
	}
}
