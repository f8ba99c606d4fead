package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sailbuild/sail/internal/fs"
)

// RestoreResult reports what a cache hit actually produced.
type RestoreResult struct {
	Success       bool
	FilesRestored int
	BytesRestored int64
	Stdout        string
	Stderr        string
	ExitCode      int
}

// Restore writes every file in man.Outputs into workingDirectory,
// verifying each file's post-write hash against the manifest before
// declaring success (spec.md §4.2: "mismatch fails restoration; the entry
// is marked suspect, not auto-deleted"). Writes go through a temp file in
// the destination directory, then rename, so a restore that's
// interrupted mid-file never leaves a half-written output in place.
func (c *SharedCache) Restore(key string, man *Manifest, workingDirectory string) (RestoreResult, error) {
	c.acquireRef(key)
	defer c.releaseRef(key)

	start := time.Now()
	entryFiles := c.entryDir(key).UntypedJoin("files")

	result := RestoreResult{Stdout: man.Stdout, Stderr: man.Stderr, ExitCode: man.ExitCode}

	for _, out := range man.Outputs {
		src := entryFiles.UntypedJoin(out.Hash)
		dest := filepath.Join(workingDirectory, out.Path)

		if err := restoreOneFile(src.ToString(), dest, out.Mode); err != nil {
			return RestoreResult{}, fmt.Errorf("restoring %s: %w", out.Path, err)
		}

		digest, err := fs.HashFile(dest)
		if err != nil {
			return RestoreResult{}, fmt.Errorf("verifying restored %s: %w", out.Path, err)
		}
		if digest != out.Hash {
			c.logger.Warn("restored file hash mismatch, marking entry suspect", "key", key, "path", out.Path)
			return RestoreResult{}, fmt.Errorf("restored file %s does not match manifest hash (entry %s may be corrupt)", out.Path, key)
		}

		result.FilesRestored++
		result.BytesRestored += out.Size
	}

	result.Success = true
	c.stats.recordHit(time.Since(start), 0)
	c.touchManifestAccess(key, man)
	return result, nil
}

func restoreOneFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".sail-tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
}

// touchManifestAccess updates and persists the entry's lastAccessedAt,
// for LRU purposes, without re-reading the whole manifest back in.
func (c *SharedCache) touchManifestAccess(key string, man *Manifest) {
	man.LastAccessedAt = time.Now()
	c.touch(key, man.TotalSize())
	if raw, err := marshalManifest(man); err == nil {
		_ = writeAtomic(c.entryDir(key).UntypedJoin("manifest.json").ToString(), raw, 0o644)
	}
}
