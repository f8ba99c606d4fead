package fs

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/sailbuild/sail/internal/syspath"
)

func TestRecursiveCopyFile(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from.txt")
	to := filepath.Join(dir, "to.txt")
	assert.NilError(t, os.WriteFile(from, []byte("contents"), 0o644))

	err := RecursiveCopy(
		syspath.AbsoluteSystemPathFromUpstream(from),
		syspath.AbsoluteSystemPathFromUpstream(to),
	)
	assert.NilError(t, err)

	got, err := os.ReadFile(to)
	assert.NilError(t, err)
	assert.Equal(t, string(got), "contents")
}

func TestRecursiveCopyDirectory(t *testing.T) {
	dir := t.TempDir()
	fromDir := filepath.Join(dir, "from")
	toDir := filepath.Join(dir, "to")
	assert.NilError(t, os.MkdirAll(filepath.Join(fromDir, "nested"), 0o755))
	assert.NilError(t, os.WriteFile(filepath.Join(fromDir, "a.txt"), []byte("a"), 0o644))
	assert.NilError(t, os.WriteFile(filepath.Join(fromDir, "nested", "b.txt"), []byte("b"), 0o644))

	err := RecursiveCopy(
		syspath.AbsoluteSystemPathFromUpstream(fromDir),
		syspath.AbsoluteSystemPathFromUpstream(toDir),
	)
	assert.NilError(t, err)

	a, err := os.ReadFile(filepath.Join(toDir, "a.txt"))
	assert.NilError(t, err)
	assert.Equal(t, string(a), "a")

	b, err := os.ReadFile(filepath.Join(toDir, "nested", "b.txt"))
	assert.NilError(t, err)
	assert.Equal(t, string(b), "b")
}
