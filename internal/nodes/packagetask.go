// Package nodes defines the nodes present in the task execution graph.
package nodes

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
)

// PackageTask represents running a particular task in a particular package.
type PackageTask struct {
	TaskID         string
	Task           string
	PackageName    string
	Pkg            *manifest.Package
	TaskDefinition manifest.TaskDefinition
	Dir            syspath.AnchoredSystemPath
	Command        string
	Outputs        []string
	Hash           string
}

const logDir = ".sail"

// RepoRelativeLogFile returns the path from the repo root to this task's
// captured log file, in system path format.
func (pt *PackageTask) RepoRelativeLogFile() string {
	return filepath.Join(pt.Dir.ToString(), logDir, logFilename(pt.Task))
}

func (pt *PackageTask) packageRelativeLogFile() string {
	return strings.Join([]string{logDir, logFilename(pt.Task)}, "/")
}

func logFilename(taskName string) string {
	escaped := strings.ReplaceAll(taskName, ":", "$colon$")
	return fmt.Sprintf("sail-%v.log", escaped)
}

// OutputPrefix returns the prefix used for logging and UI for this task.
func (pt *PackageTask) OutputPrefix() string {
	return fmt.Sprintf("%v:%v", pt.PackageName, pt.Task)
}

// HashableOutputs returns the package-relative globs considered outputs of
// this task, including its own log file so cache restores bring logs back.
func (pt *PackageTask) HashableOutputs() []string {
	outputs := make([]string, 0, len(pt.TaskDefinition.Outputs)+1)
	outputs = append(outputs, pt.packageRelativeLogFile())
	outputs = append(outputs, pt.TaskDefinition.Outputs...)
	return outputs
}

// IsCacheable reports whether this task's definition permits caching. It
// does not check whether the package actually defines the task's script.
func (pt *PackageTask) IsCacheable() bool {
	return pt.TaskDefinition.CacheEnabled()
}
