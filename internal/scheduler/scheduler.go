// Package scheduler walks a prepared task graph in weighted-priority order,
// running ready tasks across two bounded worker pools: a default pool sized
// by --concurrency, and a separate pool for long-lived "worker" tasks
// (dev servers, watchers) so they never starve the default pool or vice
// versa.
package scheduler

import (
	"container/heap"
	"fmt"
	"strings"
	"sync"

	"github.com/pyr-sh/dag"

	"github.com/sailbuild/sail/internal/core"
	"github.com/sailbuild/sail/internal/graph"
)

// Visitor runs a single task to completion (or failure).
type Visitor = func(taskID string) error

// Options controls a single scheduling pass.
type Options struct {
	// Concurrency bounds the default worker pool. Zero means unbounded.
	Concurrency int
	// WorkerConcurrency bounds the separate pool used for Worker: true
	// (persistent) tasks. Zero means unbounded.
	WorkerConcurrency int
}

// Scheduler runs a task graph's tasks in an order that approximates the
// critical path: a ready task's priority is its own weight plus the summed
// weight of every task that (transitively) depends on it, so finishing a
// task that unblocks a lot of expensive downstream work takes precedence
// over a cheap, less-consequential one.
type Scheduler struct {
	graph *graph.CompleteGraph
	tasks *dag.AcyclicGraph
}

// New builds a Scheduler over the task graph produced by core.Engine.Prepare.
func New(completeGraph *graph.CompleteGraph, engine *core.Engine) *Scheduler {
	return &Scheduler{graph: completeGraph, tasks: engine.TaskGraph}
}

// item is one entry in the ready-task priority queue.
type item struct {
	taskID   string
	priority int
	index    int
}

type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	// container/heap is a min-heap; we want the highest priority first.
	return pq[i].priority > pq[j].priority
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x interface{}) {
	n := len(*pq)
	it := x.(*item)
	it.index = n
	*pq = append(*pq, it)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}

// weight returns a task's intrinsic weight, defaulting via
// TaskDefinition.IntrinsicWeight when unset.
func (s *Scheduler) weight(taskID string) int {
	td, ok := s.graph.LookupTaskDefinition(taskID)
	if !ok {
		return 1
	}
	return td.IntrinsicWeight()
}

// isWorker reports whether taskID is a persistent worker-pool task.
func (s *Scheduler) isWorker(taskID string) bool {
	td, ok := s.graph.LookupTaskDefinition(taskID)
	return ok && td.Worker
}

// priority computes Weight(task) + sum of weights of every task that depends
// on it (its "ancestors", in this codebase's inverted terminology: see
// graph.CompleteGraph.Ancestors).
func (s *Scheduler) priority(taskID string) int {
	total := s.weight(taskID)
	ancestors, err := s.graph.Ancestors(s.tasks, taskID)
	if err != nil {
		return total
	}
	for _, a := range ancestors {
		total += s.weight(a)
	}
	return total
}

// directDependencies returns taskID's immediate (non-transitive) dependency
// task IDs, derived from the task graph's edges: Connect(BasicEdge(dependent,
// dependency)) means dependent (Source) depends on dependency (Target).
func directDependencies(tasks *dag.AcyclicGraph, taskID string) []string {
	var deps []string
	for _, e := range tasks.Edges() {
		if fmt.Sprint(e.Source()) == taskID {
			target := fmt.Sprint(e.Target())
			if !strings.Contains(target, core.ROOT_NODE_NAME) {
				deps = append(deps, target)
			}
		}
	}
	return deps
}

// Execute runs every non-root task in the graph to completion, in
// priority order within the limits of each task's dependencies and the
// configured concurrency. visitor is invoked exactly once per task, never
// concurrently for the same task, and only after all its dependencies have
// succeeded. The first error returned by visitor stops new task starts;
// in-flight tasks still run to completion. All errors encountered are
// returned together.
func (s *Scheduler) Execute(visitor Visitor, opts Options) []error {
	remaining := make(map[string]int)
	dependents := make(map[string][]string)
	var taskIDs []string

	for _, v := range s.tasks.Vertices() {
		taskID := fmt.Sprint(v)
		if strings.Contains(taskID, core.ROOT_NODE_NAME) {
			continue
		}
		taskIDs = append(taskIDs, taskID)
	}

	for _, taskID := range taskIDs {
		deps := directDependencies(s.tasks, taskID)
		remaining[taskID] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], taskID)
		}
	}

	var mu sync.Mutex
	pq := &priorityQueue{}
	heap.Init(pq)

	pushReady := func(taskID string) {
		heap.Push(pq, &item{taskID: taskID, priority: s.priority(taskID)})
	}

	for _, taskID := range taskIDs {
		if remaining[taskID] == 0 {
			pushReady(taskID)
		}
	}

	var (
		wg       sync.WaitGroup
		errs     []error
		failed   bool
		defaultN int
		workerN  int
	)
	cond := sync.NewCond(&mu)

	release := func(taskID string) {
		mu.Lock()
		defer mu.Unlock()
		for _, dependent := range dependents[taskID] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				pushReady(dependent)
			}
		}
		cond.Broadcast()
	}

	run := func(taskID string) {
		defer wg.Done()
		err := visitor(taskID)
		mu.Lock()
		if s.isWorker(taskID) {
			workerN--
		} else {
			defaultN--
		}
		if err != nil {
			errs = append(errs, err)
			failed = true
		}
		mu.Unlock()
		release(taskID)
		cond.Broadcast()
	}

	mu.Lock()
	for {
		if (pq.Len() == 0 || failed) && defaultN == 0 && workerN == 0 {
			break
		}

		started := false
		for i := 0; i < pq.Len(); i++ {
			candidate := (*pq)[i]
			worker := s.isWorker(candidate.taskID)
			if failed {
				// Drain the queue without starting new work once something
				// has failed; let in-flight tasks finish.
				break
			}
			if worker {
				if opts.WorkerConcurrency > 0 && workerN >= opts.WorkerConcurrency {
					continue
				}
			} else if opts.Concurrency > 0 && defaultN >= opts.Concurrency {
				continue
			}

			heap.Remove(pq, i)
			if worker {
				workerN++
			} else {
				defaultN++
			}
			wg.Add(1)
			go run(candidate.taskID)
			started = true
			break
		}

		if !started {
			if defaultN == 0 && workerN == 0 {
				// Nothing running and nothing startable: either we're done,
				// or everything left is blocked behind a failure.
				break
			}
			cond.Wait()
		}
	}
	mu.Unlock()

	wg.Wait()
	return errs
}
