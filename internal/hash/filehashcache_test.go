package hash

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sailbuild/sail/internal/syspath"
)

func writeTempFile(t *testing.T, dir string, name string, contents string) syspath.AbsoluteSystemPath {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return syspath.AbsoluteSystemPathFromUpstream(path)
}

func TestGetFileHashCoalescesConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "hello")

	var calls int
	c := NewFileHashCache()
	hasher := func(p string) (string, error) {
		calls++
		return "digest", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			digest, err := c.GetFileHash(path, hasher)
			if err != nil {
				t.Errorf("GetFileHash: %v", err)
			}
			if digest != "digest" {
				t.Errorf("digest = %q, want %q", digest, "digest")
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("hasher called %d times, want exactly 1", calls)
	}
}

func TestGetFileHashDefaultsToHashFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "hello")

	c := NewFileHashCache()
	first, err := c.GetFileHash(path, nil)
	if err != nil {
		t.Fatalf("GetFileHash: %v", err)
	}
	if first == "" {
		t.Fatal("expected a non-empty digest")
	}

	second, err := c.GetFileHash(path, nil)
	if err != nil {
		t.Fatalf("GetFileHash: %v", err)
	}
	if first != second {
		t.Errorf("digest changed across calls: %q vs %q", first, second)
	}
}
