package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sailbuild/sail/internal/fs"
)

// StoreRequest is everything Store needs to persist one task's result.
type StoreRequest struct {
	TaskID    string
	Key       string
	Inputs    []string
	// OutputPaths are paths relative to WorkingDirectory that the task
	// declared as outputs and that actually exist on disk.
	OutputPaths      []string
	WorkingDirectory string
	Stdout           string
	Stderr           string
	ExitCode         int
	ExecutionTime    time.Duration
}

// StoreResult reports whether Store actually wrote an entry.
type StoreResult struct {
	Success bool
	Reason  string
}

// Store persists req's outputs under a content-addressed
// entries/<key>/files/<hash> layout plus a manifest.json, guarded by a
// per-key advisory lock so two concurrent builds racing on the same key
// can't corrupt each other's write (spec.md §4.2).
func (c *SharedCache) Store(req StoreRequest) (StoreResult, error) {
	if c.skipCacheWrite {
		return StoreResult{Success: false, Reason: "skipCacheWrite"}, nil
	}
	if len(req.Inputs) == 0 || len(req.OutputPaths) == 0 {
		return StoreResult{Success: false, Reason: "not cacheable: no inputs or outputs declared"}, nil
	}

	lock, err := newEntryLock(c.entryDir(req.Key).ToString())
	if err != nil {
		return StoreResult{}, err
	}
	if err := lock.acquire(30 * time.Second); err != nil {
		return StoreResult{}, fmt.Errorf("acquiring lock for entry %s: %w", req.Key, err)
	}
	defer lock.release()

	filesDir := c.entryDir(req.Key).UntypedJoin("files")
	if err := filesDir.MkdirAll(0o755); err != nil {
		return StoreResult{}, err
	}

	outputs := make([]OutputFile, 0, len(req.OutputPaths))
	var totalSize int64

	for _, relPath := range req.OutputPaths {
		absPath := filepath.Join(req.WorkingDirectory, relPath)

		info, err := os.Lstat(absPath)
		if err != nil {
			return StoreResult{}, fmt.Errorf("stat output %s: %w", relPath, err)
		}

		digest, err := fs.HashFile(absPath)
		if err != nil {
			return StoreResult{}, fmt.Errorf("hash output %s: %w", relPath, err)
		}

		if err := stageFile(absPath, filesDir.UntypedJoin(digest).ToString(), info.Mode()); err != nil {
			return StoreResult{}, fmt.Errorf("staging output %s: %w", relPath, err)
		}

		outputs = append(outputs, OutputFile{Path: relPath, Hash: digest, Size: info.Size(), Mode: info.Mode()})
		totalSize += info.Size()
	}

	now := time.Now()
	man := &Manifest{
		Version:         manifestVersion,
		TaskID:          req.TaskID,
		Key:             req.Key,
		Inputs:          req.Inputs,
		Outputs:         outputs,
		Stdout:          req.Stdout,
		Stderr:          req.Stderr,
		ExitCode:        req.ExitCode,
		ExecutionTimeMs: req.ExecutionTime.Milliseconds(),
		CreatedAt:       now,
		LastAccessedAt:  now,
	}

	raw, err := marshalManifest(man)
	if err != nil {
		return StoreResult{}, err
	}
	if err := writeAtomic(c.entryDir(req.Key).UntypedJoin("manifest.json").ToString(), raw, 0o644); err != nil {
		return StoreResult{}, err
	}

	if c.remote != nil {
		if err := c.remote.Put(req.Key, raw); err != nil {
			c.logger.Warn("failed to push entry to remote cache", "key", req.Key, "error", err)
		}
	}

	c.stats.recordStore(1, totalSize)
	c.touch(req.Key, totalSize)
	c.evictIfOverCap()

	return StoreResult{Success: true}, nil
}

// stageFile copies src into the content-addressed store at dest. A file
// already staged under the same hash is left alone - same hash means
// same bytes, so there is nothing to do.
func stageFile(src, dest string, mode os.FileMode) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".tmp"
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
