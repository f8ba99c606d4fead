// Package donefile implements the per-task sentinel file described in
// spec.md §4.1/§4.5: presence plus byte-equality with freshly recomputed
// content means a leaf is up to date without consulting SharedCache at
// all. Done-files are themselves outputs of the task they belong to -
// they must never appear in that task's own input hash (spec.md §9's
// "done-file bifurcation" invariant) - so this package never reads a
// package's declared Inputs; callers pass the exact file set to
// fingerprint.
package donefile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"

	"github.com/sailbuild/sail/internal/syspath"
)

// FileFingerprint is one input or output file's recorded state. Hash is
// populated when content hashing was used; MtimeMs/Size are populated for
// the cheaper stat-only fingerprint. A task picks one mode consistently -
// mixing the two within a single DoneFile would make the byte-comparison
// meaningless.
type FileFingerprint struct {
	Path    string `json:"path"`
	Hash    string `json:"hash,omitempty"`
	MtimeMs int64  `json:"mtimeMs,omitempty"`
	Size    int64  `json:"size,omitempty"`
}

// DoneFile is the canonical, order-independent record of the state that
// produced a leaf's outputs. Its JSON encoding (sorted Files by Path, maps
// marshaled with sorted keys) is the "content" spec.md means by "byte-equality
// with recomputed content".
type DoneFile struct {
	// TaskID names the leaf this done-file belongs to, mostly for
	// diagnostics when a stale file is found under the wrong task.
	TaskID string `json:"taskId"`
	// Files is every input+output fingerprint that determined this task
	// was up to date, sorted by Path for stable byte-comparison.
	Files []FileFingerprint `json:"files"`
	// Config is a free-form map of task configuration relevant to
	// staleness beyond file content - tool version, compiler options,
	// env mode - so a config-only change still invalidates.
	Config map[string]string `json:"config,omitempty"`
}

// Encode renders d as the canonical bytes written to (and compared
// against) disk: sorted files, compact JSON, no extraneous whitespace so a
// single differing byte anywhere means "stale".
func (d *DoneFile) Encode() ([]byte, error) {
	sorted := append([]FileFingerprint{}, d.Files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	clone := DoneFile{TaskID: d.TaskID, Files: sorted, Config: d.Config}
	return json.Marshal(clone)
}

// Hash returns the hex SHA-256 of d's canonical encoding - this is
// computeDonefileHash() from spec.md §4.5, the value a dependent task
// folds into its own cache key for cascading invalidation.
func (d *DoneFile) Hash() (string, error) {
	raw, err := d.Encode()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Path returns the on-disk location of taskID's done-file, anchored under
// the package directory's .sail state folder.
func Path(pkgDir syspath.AbsoluteSystemPath, taskID string) syspath.AbsoluteSystemPath {
	escaped := escapeTaskID(taskID)
	return pkgDir.UntypedJoin(".sail", "done-"+escaped+".json")
}

func escapeTaskID(taskID string) string {
	out := make([]rune, 0, len(taskID))
	for _, r := range taskID {
		if r == '#' || r == '/' {
			out = append(out, '$')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// Read loads the done-file at path, returning ok=false (not an error) when
// it simply doesn't exist yet - spec.md §9's "Done-file read failure →
// treat as stale" applies to any other read error too, so callers should
// treat a non-nil error here the same way: as a miss.
func Read(path syspath.AbsoluteSystemPath) (*DoneFile, bool, error) {
	raw, err := os.ReadFile(path.ToString())
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var d DoneFile
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false, nil
	}
	return &d, true, nil
}

// Write persists d atomically, so a process killed mid-write never leaves
// a corrupt done-file that would otherwise be read back as "up to date"
// with garbage content.
func Write(path syspath.AbsoluteSystemPath, d *DoneFile) error {
	raw, err := d.Encode()
	if err != nil {
		return err
	}
	if err := path.Dir().MkdirAll(0o755); err != nil {
		return err
	}
	tmp := path.ToString() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path.ToString())
}

// Delete removes a done-file, ignoring a not-exist error. Called when a
// staleness check fails for a task that isn't re-check-capable, per
// spec.md §4's "guarantee re-execution after interruption" invariant: a
// half-finished task must not be able to look done on the next run.
func Delete(path syspath.AbsoluteSystemPath) error {
	err := os.Remove(path.ToString())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsUpToDate byte-compares expected (freshly computed) against the
// on-disk done-file at path. A read failure or mismatch is reported as
// stale, never as an error - the caller always has a valid re-execute
// fallback.
func IsUpToDate(path syspath.AbsoluteSystemPath, expected *DoneFile) (bool, error) {
	existing, ok, err := Read(path)
	if err != nil || !ok {
		return false, nil
	}
	existingRaw, err := existing.Encode()
	if err != nil {
		return false, nil
	}
	expectedRaw, err := expected.Encode()
	if err != nil {
		return false, err
	}
	return string(existingRaw) == string(expectedRaw), nil
}
