package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sailbuild/sail/internal/graph"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/util"

	"github.com/pyr-sh/dag"
)

// ROOT_NODE_NAME is the sentinel vertex added to the task graph so leaf
// tasks with no dependencies have something to connect to.
const ROOT_NODE_NAME = "___ROOT___"

// Task is a resolved task: its name plus the TaskDefinition governing it.
type Task struct {
	Name           string
	TaskDefinition manifest.TaskDefinition
}

// Visitor is invoked once per taskID as the task graph is walked.
type Visitor = func(taskID string) error

// Engine owns the task graph built from a CompleteGraph's workspace graph
// and build config, and walks it to execute tasks.
type Engine struct {
	// TaskGraph is a graph of package-tasks.
	TaskGraph        *dag.AcyclicGraph
	rootEnabledTasks util.Set

	// completeGraph supplies the workspace graph, package catalog, and task
	// definitions this engine resolves dependencies against.
	completeGraph *graph.CompleteGraph
}

// NewEngine creates a new engine given the complete graph for a build project.
func NewEngine(completeGraph *graph.CompleteGraph) *Engine {
	return &Engine{
		completeGraph:    completeGraph,
		TaskGraph:        &dag.AcyclicGraph{},
		rootEnabledTasks: make(util.Set),
	}
}

// EngineBuildingOptions help construct the TaskGraph.
type EngineBuildingOptions struct {
	// Packages in the execution scope; when empty, no tasks are added.
	Packages []string
	// TaskNames in the execution scope; when empty, no tasks are added.
	TaskNames []string
	// TasksOnly restricts execution to only the listed task names, with no
	// transitive dependencies added.
	TasksOnly bool
}

// EngineExecutionOptions controls a single walk of the task graph.
type EngineExecutionOptions struct {
	// Parallel, if true, skips the concurrency semaphore entirely.
	Parallel bool
	// Concurrency is the number of concurrent tasks that can be executed
	// when Parallel is false.
	Concurrency int
}

// Execute walks the task graph, invoking visitor for every non-root vertex.
func (e *Engine) Execute(visitor Visitor, opts EngineExecutionOptions) []error {
	sema := util.NewSemaphore(opts.Concurrency)
	var errored int32
	return e.TaskGraph.Walk(func(v dag.Vertex) error {
		// If something has already errored, short-circuit. There is a race
		// here between concurrent tasks: without a dependency edge between
		// them we are not required to impose an order, so a failed task may
		// not short-circuit a concurrent task that started at the same time.
		if atomic.LoadInt32(&errored) != 0 {
			return nil
		}

		taskID := dag.VertexName(v)
		if strings.Contains(taskID, ROOT_NODE_NAME) {
			return nil
		}

		if !opts.Parallel {
			sema.Acquire()
			defer sema.Release()
		}

		if err := visitor(taskID); err != nil {
			atomic.StoreInt32(&errored, 1)
			return err
		}
		return nil
	})
}

// MissingTaskError is returned when a task cannot be found. It is a
// distinct type so callers can distinguish "doesn't exist" from other
// resolution failures.
type MissingTaskError struct {
	workspaceName string
	taskID        string
	taskName      string
}

func (m *MissingTaskError) Error() string {
	return fmt.Sprintf("could not find %q or %q in package %q", m.taskName, m.taskID, m.workspaceName)
}

// getTaskDefinition resolves a taskID against the single root Tasks table.
// A task is missing, rather than an error, when its definition requires a
// package script (Script: true) and the package in question has no script
// of that name - the task is simply not defined for that package.
func (e *Engine) getTaskDefinition(pkg string, taskName string, taskID string) (*Task, error) {
	td, ok := e.completeGraph.LookupTaskDefinition(taskID)
	if !ok {
		return nil, &MissingTaskError{taskName: taskName, taskID: taskID, workspaceName: pkg}
	}

	if td.Script && pkg != util.RootPkgName {
		pkgInfo, ok := e.completeGraph.WorkspaceInfos.Packages[pkg]
		if !ok {
			return nil, fmt.Errorf("could not find package %q in project", pkg)
		}
		if _, hasScript := pkgInfo.Scripts[taskName]; !hasScript {
			return nil, &MissingTaskError{taskName: taskName, taskID: taskID, workspaceName: pkg}
		}
	}

	return &Task{Name: taskName, TaskDefinition: *td}, nil
}

// Prepare constructs the task graph for a list of packages and tasks.
func (e *Engine) Prepare(options *EngineBuildingOptions) error {
	pkgs := options.Packages
	taskNames := options.TaskNames
	tasksOnly := options.TasksOnly

	if len(pkgs) == 0 {
		return nil
	}

	traversalQueue := []string{}

	// missing tracks taskNames we haven't found a definition for yet.
	missing := util.SetFromStrings(taskNames)

	for _, pkg := range pkgs {
		for _, taskName := range taskNames {
			taskID := util.GetTaskId(pkg, taskName)

			foundTask, err := e.getTaskDefinition(pkg, taskName, taskID)
			if err != nil {
				var missingErr *MissingTaskError
				if errors.As(err, &missingErr) {
					// Not every package needs to define every requested
					// task; validated against missing below.
					continue
				}
				return err
			}

			if foundTask != nil {
				missing.Delete(taskName)

				// Only add this as an entry point if it's a task from a
				// non-root workspace, or a task we know is root-enabled.
				isRootPkg := pkg == util.RootPkgName
				if !isRootPkg || e.rootEnabledTasks.Includes(taskName) {
					traversalQueue = append(traversalQueue, taskID)
				}
			}
		}
	}

	visited := make(util.Set)

	missingList := missing.UnsafeListOfStrings()
	sort.Strings(missingList)
	if len(missingList) > 0 {
		return fmt.Errorf("could not find the following tasks in project: %s", strings.Join(missingList, ", "))
	}

	for len(traversalQueue) > 0 {
		taskID := traversalQueue[0]
		traversalQueue = traversalQueue[1:]

		pkg, taskName := util.GetPackageTaskFromId(taskID)

		if pkg == util.RootPkgName && !e.rootEnabledTasks.Includes(taskName) {
			return fmt.Errorf("%v needs an entry in the build config's tasks table before it can be depended on, because it runs from the root package", taskID)
		}

		if pkg != ROOT_NODE_NAME && pkg != util.RootPkgName {
			if _, ok := e.completeGraph.WorkspaceInfos.Packages[pkg]; !ok {
				return fmt.Errorf("could not find package %q from task %q in project", pkg, taskID)
			}
		}

		taskDefinition, ok := e.completeGraph.LookupTaskDefinition(taskID)
		if !ok {
			return fmt.Errorf("could not find task definition for %q", taskID)
		}

		if visited.Includes(taskID) {
			continue
		}
		visited.Add(taskID)

		e.completeGraph.TaskDefinitions[taskID] = taskDefinition

		// dependsOn entries split three ways: "^name" is topological (every
		// workspace dependency's same-named task), "pkg#name" is an
		// explicit cross-package reference, and a bare "name" is a
		// same-package dependency.
		topoDeps := make(util.Set)
		deps := make(util.Set)
		explicitDeps := make(util.Set)

		for _, dependency := range taskDefinition.DependsOn {
			switch {
			case strings.HasPrefix(dependency, "^"):
				topoDeps.Add(strings.TrimPrefix(dependency, "^"))
			case util.IsPackageTask(dependency):
				explicitDeps.Add(dependency)
			default:
				deps.Add(dependency)
			}
		}

		if tasksOnly {
			onlyFilter := func(d interface{}) bool {
				for _, target := range taskNames {
					if fmt.Sprintf("%v", d) == target {
						return true
					}
				}
				return false
			}
			topoDeps = topoDeps.Filter(onlyFilter)
			deps = deps.Filter(onlyFilter)
			explicitDeps = explicitDeps.Filter(onlyFilter)
		}

		toTaskID := taskID
		hasTopoDeps := topoDeps.Len() > 0 && e.completeGraph.WorkspaceGraph.DownEdges(pkg).Len() > 0
		hasDeps := deps.Len() > 0
		hasExplicitDeps := explicitDeps.Len() > 0

		if hasTopoDeps {
			depPkgs := e.completeGraph.WorkspaceGraph.DownEdges(pkg)
			for _, from := range topoDeps.UnsafeListOfStrings() {
				for depPkg := range depPkgs {
					fromTaskID := util.GetTaskId(depPkg, from)
					e.TaskGraph.Add(fromTaskID)
					e.TaskGraph.Add(toTaskID)
					e.TaskGraph.Connect(dag.BasicEdge(toTaskID, fromTaskID))
					traversalQueue = append(traversalQueue, fromTaskID)
				}
			}
		}

		if hasDeps {
			for _, from := range deps.UnsafeListOfStrings() {
				fromTaskID := util.GetTaskId(pkg, from)
				e.TaskGraph.Add(fromTaskID)
				e.TaskGraph.Add(toTaskID)
				e.TaskGraph.Connect(dag.BasicEdge(toTaskID, fromTaskID))
				traversalQueue = append(traversalQueue, fromTaskID)
			}
		}

		if hasExplicitDeps {
			for _, fromTaskID := range explicitDeps.UnsafeListOfStrings() {
				fromPkg, _ := util.GetPackageTaskFromId(fromTaskID)
				if fromPkg != util.RootPkgName {
					if _, ok := e.completeGraph.WorkspaceInfos.Packages[fromPkg]; !ok {
						return fmt.Errorf("found reference to unknown package %q in task %q", fromPkg, fromTaskID)
					}
				}
				e.TaskGraph.Add(fromTaskID)
				e.TaskGraph.Add(toTaskID)
				e.TaskGraph.Connect(dag.BasicEdge(toTaskID, fromTaskID))
				traversalQueue = append(traversalQueue, fromTaskID)
			}
		}

		if !hasDeps && !hasTopoDeps && !hasExplicitDeps {
			e.TaskGraph.Add(ROOT_NODE_NAME)
			e.TaskGraph.Add(toTaskID)
			e.TaskGraph.Connect(dag.BasicEdge(toTaskID, ROOT_NODE_NAME))
		}
	}

	return nil
}

// AddTask marks a root-scoped task name as root-enabled, so it can be used
// both as a direct entry point and as a dependency target.
func (e *Engine) AddTask(taskName string) {
	if util.IsPackageTask(taskName) {
		pkg, name := util.GetPackageTaskFromId(taskName)
		if pkg == util.RootPkgName {
			e.rootEnabledTasks.Add(name)
		}
	}
}

// ValidatePersistentDependencies returns an error if any task depends on a
// worker-pool task that's actually implemented (worker-pool tasks never
// finish, so nothing can correctly depend on their completion), or if the
// graph has at least as many worker-pool tasks as available concurrency.
func (e *Engine) ValidatePersistentDependencies(concurrency int) error {
	var validationError error
	persistentCount := 0

	// Walking the graph concurrently without this lock can race when
	// writing to validationError (reproducible with `go test -race`).
	sema := util.NewSemaphore(1)

	errs := e.TaskGraph.Walk(func(v dag.Vertex) error {
		vertexName := dag.VertexName(v)
		if strings.Contains(vertexName, ROOT_NODE_NAME) {
			return nil
		}

		sema.Acquire()
		defer sema.Release()

		if currentTaskDefinition, ok := e.completeGraph.TaskDefinitions[vertexName]; ok && currentTaskDefinition.Worker {
			persistentCount++
		}

		currentPackageName, currentTaskName := util.GetPackageTaskFromId(vertexName)

		for dep := range e.TaskGraph.DownEdges(vertexName) {
			depTaskID := dep.(string)
			if strings.Contains(depTaskID, ROOT_NODE_NAME) {
				return nil
			}

			packageName, taskName := util.GetPackageTaskFromId(depTaskID)

			depTaskDefinition, ok := e.completeGraph.TaskDefinitions[depTaskID]
			if !ok {
				return fmt.Errorf("cannot find task definition for %v in package %v", depTaskID, packageName)
			}

			pkg, ok := e.completeGraph.WorkspaceInfos.Packages[packageName]
			if !ok {
				return fmt.Errorf("cannot find package %v", packageName)
			}
			_, hasScript := pkg.Scripts[taskName]

			if depTaskDefinition.Worker && hasScript {
				validationError = fmt.Errorf(
					"%q runs a worker-pool task; %q cannot depend on it completing",
					util.GetTaskId(packageName, taskName),
					util.GetTaskId(currentPackageName, currentTaskName),
				)
				break
			}
		}

		return nil
	})

	for _, err := range errs {
		return fmt.Errorf("validation failed: %v", err)
	}

	if validationError != nil {
		return validationError
	} else if persistentCount >= concurrency {
		return fmt.Errorf("project has %v worker-pool tasks but concurrency is %v; set --concurrency to at least %v", persistentCount, concurrency, persistentCount+1)
	}

	return nil
}
