//go:build go || !rust
// +build go !rust

package hashing

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/sailbuild/sail/internal/encoding/gitoutput"
	"github.com/sailbuild/sail/internal/syspath"
)

// statusCode is the two-character X/Y status pair `git status --porcelain`
// reports for a path (index state, worktree state).
type statusCode struct {
	x string
	y string
}

// isDelete reports whether either half of the status indicates the path was
// removed, either from the index or the working tree.
func (s statusCode) isDelete() bool {
	return s.x == "D" || s.y == "D"
}

// runGitCommand starts cmd, hands its stdout to handler, and waits for
// completion, returning every parsed record.
func runGitCommand(cmd *exec.Cmd, name string, handler func(io.Reader) *gitoutput.Reader) ([][]string, error) {
	out, pipeErr := cmd.StdoutPipe()
	if pipeErr != nil {
		return nil, fmt.Errorf("failed to read `git %s`: %w", name, pipeErr)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to read `git %s`: %w", name, err)
	}

	reader := handler(out)
	entries, readErr := reader.ReadAll()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read `git %s`: %w", name, readErr)
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read `git %s`: %w", name, err)
	}

	return entries, nil
}

// gitLsTree returns every file HEAD knows about under absolutePackagePath,
// mapped to its blob SHA, anchored at absolutePackagePath.
func gitLsTree(absolutePackagePath syspath.AbsoluteSystemPath) (map[syspath.AnchoredUnixPath]string, error) {
	cmd := exec.Command("git", "ls-tree", "-r", "-z", "HEAD")
	cmd.Dir = absolutePackagePath.ToString()

	entries, err := runGitCommand(cmd, "ls-tree", gitoutput.NewLSTreeReader)
	if err != nil {
		return nil, err
	}

	result := make(map[syspath.AnchoredUnixPath]string, len(entries))
	for _, entry := range entries {
		lsTreeEntry := gitoutput.LsTreeEntry(entry)
		path := syspath.AnchoredUnixPathFromUpstream(lsTreeEntry.GetField(gitoutput.Path))
		result[path] = lsTreeEntry.GetField(gitoutput.ObjectName)
	}

	return result, nil
}
