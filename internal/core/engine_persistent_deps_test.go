package core

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/pyr-sh/dag"

	"github.com/sailbuild/sail/internal/graph"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/util"
	"github.com/sailbuild/sail/internal/workspace"
)

// _buildCompleteGraph turns an easy {workspace: [dependsOn...]} map into a
// CompleteGraph with a "build" and "dev" script seeded in every workspace.
func _buildCompleteGraph(workspaceDeps map[string][]string) (*graph.CompleteGraph, []string) {
	var workspaceGraph dag.AcyclicGraph
	var workspaces []string

	for ws, deps := range workspaceDeps {
		workspaces = append(workspaces, ws)
		workspaceGraph.Add(ws)
		for _, dep := range deps {
			workspaceGraph.Connect(dag.BasicEdge(ws, dep))
		}
	}

	packages := map[string]*manifest.Package{
		util.RootPkgName: {Name: "root", Scripts: map[string]string{}},
	}
	for _, ws := range workspaces {
		packages[ws] = &manifest.Package{
			Name: ws,
			Scripts: map[string]string{
				"build": "echo " + ws + " build",
				"dev":   "echo " + ws + " dev",
			},
		}
	}

	cg := &graph.CompleteGraph{
		WorkspaceGraph: workspaceGraph,
		RootNode:       util.RootPkgName,
		Config: &manifest.BuildConfig{
			Tasks: map[string]manifest.TaskDefinition{
				"build": {Script: true, DependsOn: []string{"dev"}},
				"dev":   {Script: true, DependsOn: []string{"^dev"}, Worker: true},
			},
		},
		WorkspaceInfos:  workspace.Catalog{Packages: packages},
		TaskDefinitions: map[string]*manifest.TaskDefinition{},
	}
	return cg, workspaces
}

func TestValidatePersistentDependenciesTopological(t *testing.T) {
	completeGraph, workspaces := _buildCompleteGraph(map[string][]string{
		"workspace-a": {"workspace-c"},
		"workspace-b": {"workspace-c"},
		"workspace-c": {},
	})

	engine := NewEngine(completeGraph)
	err := engine.Prepare(&EngineBuildingOptions{
		Packages:  workspaces,
		TaskNames: []string{"dev"},
	})
	assert.NilError(t, err)

	actualErr := engine.ValidatePersistentDependencies(10)
	assert.ErrorContains(t, actualErr, "dev\" runs a worker-pool task")
}

func TestValidatePersistentDependenciesConcurrencyLimit(t *testing.T) {
	completeGraph, workspaces := _buildCompleteGraph(map[string][]string{
		"workspace-a": {},
	})

	engine := NewEngine(completeGraph)
	err := engine.Prepare(&EngineBuildingOptions{
		Packages:  workspaces,
		TaskNames: []string{"dev"},
	})
	assert.NilError(t, err)

	// dev is not depended upon by anything here, so only the concurrency
	// check should fire.
	actualErr := engine.ValidatePersistentDependencies(1)
	assert.ErrorContains(t, actualErr, "concurrency is 1")
}
