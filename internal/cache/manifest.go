package cache

import (
	"os"
	"time"
)

// manifestVersion is bumped whenever the on-disk entry shape changes
// incompatibly; a mismatched version is treated as "cache miss", not
// "corrupt", per spec.md §4.2's version-marker invariant.
const manifestVersion = 1

// OutputFile is one file an entry's manifest records, restored verbatim
// on a hit.
type OutputFile struct {
	Path string      `json:"path"`
	Hash string      `json:"hash"`
	Size int64       `json:"size"`
	Mode os.FileMode `json:"mode"`
}

// Manifest is the canonical JSON written to
// `entries/<key>/manifest.json`: everything needed to restore a task's
// result without re-running it.
type Manifest struct {
	Version         int          `json:"version"`
	TaskID          string       `json:"taskId"`
	Key             string       `json:"key"`
	Inputs          []string     `json:"inputs"`
	Outputs         []OutputFile `json:"outputs"`
	Stdout          string       `json:"stdout"`
	Stderr          string       `json:"stderr"`
	ExitCode        int          `json:"exitCode"`
	ExecutionTimeMs int64        `json:"executionTimeMs"`
	CreatedAt       time.Time    `json:"createdAt"`
	LastAccessedAt  time.Time    `json:"lastAccessedAt"`
}

// TotalSize sums the recorded size of every output file; used for LRU
// eviction accounting.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Outputs {
		total += f.Size
	}
	return total
}
