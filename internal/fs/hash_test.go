package fs

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/sailbuild/sail/internal/syspath"
)

func TestHashObjectDeterministic(t *testing.T) {
	a, err := HashObject(map[string]string{"x": "1"})
	assert.NilError(t, err)
	b, err := HashObject(map[string]string{"x": "1"})
	assert.NilError(t, err)
	assert.Equal(t, a, b)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NilError(t, os.WriteFile(path, []byte("hello"), 0o644))

	hash, err := HashFile(path)
	assert.NilError(t, err)
	assert.Assert(t, hash != "")

	hash2, err := HashFile(path)
	assert.NilError(t, err)
	assert.Equal(t, hash, hash2)
}

func TestGitLikeHashFileMatchesGitBlobFraming(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NilError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	hash, err := GitLikeHashFile(syspath.AbsoluteSystemPathFromUpstream(path))
	assert.NilError(t, err)
	// git hash-object for the literal content "hello world" is a known value.
	assert.Equal(t, hash, "95d09f2b10159347eece71399a7e2e907ea3df4f")
}
