package core

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/pyr-sh/dag"

	"github.com/sailbuild/sail/internal/graph"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/util"
	"github.com/sailbuild/sail/internal/workspace"
)

func TestShortCircuiting(t *testing.T) {
	var workspaceGraph dag.AcyclicGraph
	workspaceGraph.Add("a")
	workspaceGraph.Add("b")
	workspaceGraph.Add("c")
	// Dependencies: a -> b -> c
	workspaceGraph.Connect(dag.BasicEdge("a", "b"))
	workspaceGraph.Connect(dag.BasicEdge("b", "c"))

	completeGraph := &graph.CompleteGraph{
		WorkspaceGraph: workspaceGraph,
		RootNode:       util.RootPkgName,
		Config: &manifest.BuildConfig{
			Tasks: map[string]manifest.TaskDefinition{
				"build": {DependsOn: []string{"^build"}, Script: true},
			},
		},
		WorkspaceInfos: workspace.Catalog{
			Packages: map[string]*manifest.Package{
				"a": {Name: "a", Scripts: map[string]string{"build": "echo a"}},
				"b": {Name: "b", Scripts: map[string]string{"build": "echo b"}},
				"c": {Name: "c", Scripts: map[string]string{"build": "echo c"}},
			},
		},
		TaskDefinitions: map[string]*manifest.TaskDefinition{},
	}

	p := NewEngine(completeGraph)
	p.AddTask(util.RootTaskID("build"))

	err := p.Prepare(&EngineBuildingOptions{
		Packages:  []string{"a", "b", "c"},
		TaskNames: []string{"build"},
	})
	assert.NilError(t, err)

	executed := map[string]bool{
		"a#build": false,
		"b#build": false,
		"c#build": false,
	}
	expectedErr := errors.New("an error occurred")
	// b#build errors; we expect a#build, which depends on it, to not execute.
	testVisitor := func(taskID string) error {
		executed[taskID] = true
		if taskID == "b#build" {
			return expectedErr
		}
		return nil
	}

	errs := p.Execute(testVisitor, EngineExecutionOptions{Concurrency: 10})
	assert.Equal(t, len(errs), 1)
	assert.Equal(t, errs[0], expectedErr)

	assert.Equal(t, executed["c#build"], true)
	assert.Equal(t, executed["b#build"], true)
	assert.Equal(t, executed["a#build"], false)
}

func TestPrepareSkipsPackagesWithoutScript(t *testing.T) {
	var workspaceGraph dag.AcyclicGraph
	workspaceGraph.Add("a")
	workspaceGraph.Add("b")
	workspaceGraph.Connect(dag.BasicEdge("a", "b"))

	completeGraph := &graph.CompleteGraph{
		WorkspaceGraph: workspaceGraph,
		RootNode:       util.RootPkgName,
		Config: &manifest.BuildConfig{
			Tasks: map[string]manifest.TaskDefinition{
				"lint": {Script: true},
			},
		},
		WorkspaceInfos: workspace.Catalog{
			Packages: map[string]*manifest.Package{
				"a": {Name: "a", Scripts: map[string]string{"lint": "eslint ."}},
				"b": {Name: "b", Scripts: map[string]string{}},
			},
		},
		TaskDefinitions: map[string]*manifest.TaskDefinition{},
	}

	p := NewEngine(completeGraph)
	err := p.Prepare(&EngineBuildingOptions{
		Packages:  []string{"a", "b"},
		TaskNames: []string{"lint"},
	})
	assert.NilError(t, err)

	assert.Assert(t, p.TaskGraph.HasVertex("a#lint"))
	assert.Assert(t, !p.TaskGraph.HasVertex("b#lint"))
}

func TestPrepareExplicitCrossPackageDependency(t *testing.T) {
	var workspaceGraph dag.AcyclicGraph
	workspaceGraph.Add("a")
	workspaceGraph.Add("b")

	completeGraph := &graph.CompleteGraph{
		WorkspaceGraph: workspaceGraph,
		RootNode:       util.RootPkgName,
		Config: &manifest.BuildConfig{
			Tasks: map[string]manifest.TaskDefinition{
				"build":    {Script: true, DependsOn: []string{"b#codegen"}},
				"codegen":  {Script: true},
			},
		},
		WorkspaceInfos: workspace.Catalog{
			Packages: map[string]*manifest.Package{
				"a": {Name: "a", Scripts: map[string]string{"build": "go build"}},
				"b": {Name: "b", Scripts: map[string]string{"codegen": "protoc"}},
			},
		},
		TaskDefinitions: map[string]*manifest.TaskDefinition{},
	}

	p := NewEngine(completeGraph)
	err := p.Prepare(&EngineBuildingOptions{
		Packages:  []string{"a"},
		TaskNames: []string{"build"},
	})
	assert.NilError(t, err)

	downEdges := p.TaskGraph.DownEdges("a#build")
	assert.Equal(t, downEdges.Len(), 1)
	found := false
	for dep := range downEdges {
		if dep.(string) == "b#codegen" {
			found = true
		}
	}
	assert.Assert(t, found)
}
