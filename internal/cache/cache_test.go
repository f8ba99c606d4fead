package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sailbuild/sail/internal/syspath"
)

func newTestCache(t *testing.T, maxSize int64) *SharedCache {
	t.Helper()
	dir := t.TempDir()
	c, err := New(Options{
		Dir:          syspath.AbsoluteSystemPathFromUpstream(dir),
		MaxSizeBytes: maxSize,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLookupMissOnEmptyCache(t *testing.T) {
	c := newTestCache(t, 0)
	_, ok, err := c.Lookup("nonexistent")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatal("expected a miss on an empty cache")
	}
	if c.stats.Misses != 1 {
		t.Fatalf("expected 1 recorded miss, got %d", c.stats.Misses)
	}
}

func TestStoreThenLookupThenRestore(t *testing.T) {
	c := newTestCache(t, 0)

	workDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(workDir, "dist"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "dist", "out.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := StoreRequest{
		TaskID:           "pkg-a#build",
		Key:              "abc123",
		Inputs:           []string{"src/index.ts"},
		OutputPaths:      []string{"dist/out.txt"},
		WorkingDirectory: workDir,
		Stdout:           "built ok",
		ExitCode:         0,
	}
	res, err := c.Store(req)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected Store to succeed, got reason %q", res.Reason)
	}

	man, ok, err := c.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Store")
	}
	if man.TaskID != req.TaskID {
		t.Fatalf("manifest TaskID = %q, want %q", man.TaskID, req.TaskID)
	}

	restoreDir := t.TempDir()
	result, err := c.Restore("abc123", man, restoreDir)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !result.Success || result.FilesRestored != 1 {
		t.Fatalf("unexpected restore result: %+v", result)
	}

	got, err := os.ReadFile(filepath.Join(restoreDir, "dist", "out.txt"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("restored content = %q, want %q", got, "hello")
	}
}

func TestStoreSkipsWhenNotCacheable(t *testing.T) {
	c := newTestCache(t, 0)
	res, err := c.Store(StoreRequest{TaskID: "t", Key: "k", WorkingDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if res.Success {
		t.Fatal("expected Store to skip when there are no inputs/outputs")
	}
}

func TestStoreSkipsWhenSkipCacheWrite(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Dir: syspath.AbsoluteSystemPathFromUpstream(dir), SkipCacheWrite: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, "out.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := c.Store(StoreRequest{
		TaskID: "t", Key: "k",
		Inputs: []string{"a"}, OutputPaths: []string{"out.txt"},
		WorkingDirectory: workDir,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if res.Success {
		t.Fatal("expected Store to skip when SkipCacheWrite is set")
	}
}

func TestEvictionKeepsAtLeastOneEntry(t *testing.T) {
	c := newTestCache(t, 1)

	for i, key := range []string{"k1", "k2", "k3"} {
		workDir := t.TempDir()
		content := []byte("payload-data-that-is-more-than-one-byte")
		if err := os.WriteFile(filepath.Join(workDir, "out.txt"), content, 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := c.Store(StoreRequest{
			TaskID: "t", Key: key,
			Inputs: []string{"a"}, OutputPaths: []string{"out.txt"},
			WorkingDirectory: workDir,
		})
		if err != nil {
			t.Fatalf("Store #%d: %v", i, err)
		}
	}

	c.mu.Lock()
	remaining := c.lru.Len()
	c.mu.Unlock()
	if remaining < 1 {
		t.Fatal("expected at least one surviving entry after eviction")
	}

	if _, ok, _ := c.Lookup("k3"); !ok {
		t.Fatal("expected the most recently stored entry to survive eviction")
	}
}
