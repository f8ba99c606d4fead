// Package graph builds the workspace dependency graph - the DAG of package
// names connected by WorkspaceDeps edges - and bundles it together with the
// catalog and build config a task graph is constructed from.
package graph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pyr-sh/dag"

	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
	"github.com/sailbuild/sail/internal/util"
	"github.com/sailbuild/sail/internal/workspace"
)

// CompleteGraph is the aggregate of every piece of static information needed
// to build a task graph: the workspace DAG, the package catalog, the single
// root build config, and (once Prepare runs) the resolved task definitions
// keyed by taskID.
type CompleteGraph struct {
	// WorkspaceGraph is the DAG of package names, an edge from A to B meaning
	// A depends on B.
	WorkspaceGraph dag.AcyclicGraph
	// WorkspaceInfos is the discovered package catalog.
	WorkspaceInfos workspace.Catalog
	// Config is the single root-level build configuration. Sail has no
	// per-package override config - every task definition lives in this one
	// table - so, unlike a build tool with a per-workspace config file,
	// there is no extends chain to resolve here.
	Config *manifest.BuildConfig
	// GlobalHash is the hash of everything that affects every task
	// regardless of package: global dependency files, global env vars, and
	// the lockfile.
	GlobalHash string
	// RootNode is the sentinel vertex name for the workspace root package.
	RootNode string
	// TaskDefinitions is populated as the task graph is prepared, keyed by
	// taskID, so execution can look a definition up without re-resolving it.
	TaskDefinitions map[string]*manifest.TaskDefinition
	// RepoRoot is the absolute path to the workspace root.
	RepoRoot syspath.AbsoluteSystemPath
}

// NewCompleteGraph builds the workspace DAG from the catalog's resolved
// WorkspaceDeps edges and wraps it with the build config.
func NewCompleteGraph(repoRoot syspath.AbsoluteSystemPath, catalog workspace.Catalog, cfg *manifest.BuildConfig) *CompleteGraph {
	workspaceGraph := dag.AcyclicGraph{}
	workspaceGraph.Add(util.RootPkgName)

	for name := range catalog.Packages {
		workspaceGraph.Add(name)
	}
	for name, pkg := range catalog.Packages {
		if len(pkg.WorkspaceDeps) == 0 {
			workspaceGraph.Connect(dag.BasicEdge(name, util.RootPkgName))
			continue
		}
		for _, dep := range pkg.WorkspaceDeps {
			workspaceGraph.Connect(dag.BasicEdge(name, dep))
		}
	}

	return &CompleteGraph{
		WorkspaceGraph:  workspaceGraph,
		WorkspaceInfos:  catalog,
		Config:          cfg,
		RootNode:        util.RootPkgName,
		TaskDefinitions: map[string]*manifest.TaskDefinition{},
		RepoRoot:        repoRoot,
	}
}

// LookupTaskDefinition finds the TaskDefinition for a taskID in the single
// root Tasks table, stripping any package prefix first since Sail's task
// definitions are not themselves scoped per package.
func (g *CompleteGraph) LookupTaskDefinition(taskID string) (*manifest.TaskDefinition, bool) {
	taskName := util.StripPackageName(taskID)
	td, ok := g.Config.Tasks[taskName]
	if !ok {
		return nil, false
	}
	return &td, true
}

const logDir = ".sail"

// RepoRelativeLogFile returns the repo-relative path to a task's captured
// stdout/stderr log file.
func RepoRelativeLogFile(pkgDir syspath.AnchoredSystemPath, taskName string) string {
	escaped := strings.ReplaceAll(taskName, ":", "$colon$")
	return fmt.Sprintf("%s/%s/sail-%s.log", pkgDir.ToString(), logDir, escaped)
}

var commandLooksLikeSail = regexp.MustCompile(`(?:^|\s)(sail)(?:$|\s)`)

// TaskOutputsSelfReferential reports whether a package's script for taskName
// appears to invoke the Sail binary itself, which would otherwise recurse
// forever when that task is a root-enabled task with no dependencies.
func TaskOutputsSelfReferential(pkg *manifest.Package, taskName string) bool {
	script, ok := pkg.Scripts[taskName]
	if !ok {
		return false
	}
	return commandLooksLikeSail.MatchString(script)
}

// getTaskGraphAncestors returns all ancestors for a given task (tasks that
// depend on the given task).
func getTaskGraphAncestors(taskGraph *dag.AcyclicGraph, taskID string) ([]string, error) {
	ancestors, err := taskGraph.Ancestors(taskID)
	if err != nil {
		return nil, err
	}
	stringAncestors := make([]string, 0, len(ancestors))
	for _, dep := range ancestors {
		// Don't leak the root node name into these lists, since it's not a real task.
		if dep != util.RootPkgName {
			stringAncestors = append(stringAncestors, dep.(string))
		}
	}
	return stringAncestors, nil
}

// getTaskGraphDescendants returns all descendants for a given task (tasks
// that the given task depends on).
func getTaskGraphDescendants(taskGraph *dag.AcyclicGraph, taskID string) ([]string, error) {
	descendants, err := taskGraph.Descendents(taskID)
	if err != nil {
		return nil, err
	}
	stringDescendants := make([]string, 0, len(descendants))
	for _, dep := range descendants {
		if dep != util.RootPkgName {
			stringDescendants = append(stringDescendants, dep.(string))
		}
	}
	return stringDescendants, nil
}

// Ancestors returns all ancestors of a package-task (tasks that depend on it).
func (g *CompleteGraph) Ancestors(taskGraph *dag.AcyclicGraph, taskID string) ([]string, error) {
	return getTaskGraphAncestors(taskGraph, taskID)
}

// Descendants returns all descendants of a package-task (tasks it depends on).
func (g *CompleteGraph) Descendants(taskGraph *dag.AcyclicGraph, taskID string) ([]string, error) {
	return getTaskGraphDescendants(taskGraph, taskID)
}
