// Package execer implements the per-leaf execution lifecycle of spec.md
// §4.5: cache lookup, a local done-file incremental check, spawning the
// command on a miss, and storing outputs on success. It is the Visitor
// the scheduler walks the task graph with, adapting teacher's
// internal/runcache glue (cache-then-execute-then-store) onto
// internal/process.Manager for the actual spawn.
package execer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pyr-sh/dag"

	"github.com/sailbuild/sail/internal/cache"
	"github.com/sailbuild/sail/internal/colorcache"
	"github.com/sailbuild/sail/internal/core"
	"github.com/sailbuild/sail/internal/donefile"
	"github.com/sailbuild/sail/internal/errs"
	"github.com/sailbuild/sail/internal/fs/globby"
	"github.com/sailbuild/sail/internal/graph"
	"github.com/sailbuild/sail/internal/hash"
	"github.com/sailbuild/sail/internal/logger"
	"github.com/sailbuild/sail/internal/logstreamer"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/nodes"
	"github.com/sailbuild/sail/internal/process"
	"github.com/sailbuild/sail/internal/syspath"
	"github.com/sailbuild/sail/internal/util"
)

// Status is a leaf's terminal outcome, per spec.md §4.5 step 6.
type Status string

const (
	StatusSuccess               Status = "Success"
	StatusSuccessWithCacheWrite Status = "SuccessWithCacheWrite"
	StatusCachedSuccess         Status = "CachedSuccess"
	StatusUpToDate              Status = "UpToDate"
	StatusFailed                Status = "Failed"
)

// Result records one task's outcome, kept around so downstream tasks can
// fold an upstream's cache key / done-file hash into their own (the
// cascading-invalidation mechanism spec.md §4.5 step 3 describes).
type Result struct {
	TaskID       string
	Status       Status
	ExitCode     int
	Duration     time.Duration
	CacheKey     string
	DoneFileHash string
	Stdout       string
	Stderr       string
}

// Options configures an Executor.
type Options struct {
	Verbose bool
	DryRun  bool
	EnvVars map[string]string
}

// Executor runs leaves to completion, one at a time per taskID, tracking
// enough state about already-finished dependencies to compute a
// dependent's cache key.
type Executor struct {
	graph    *graph.CompleteGraph
	tasks    *dag.AcyclicGraph
	cache    *cache.SharedCache
	keys     *hash.CacheKeyBuilder
	procs    *process.Manager
	logger   hclog.Logger
	opts     Options
	colors   *colorcache.ColorCache
	status   *logger.ConcurrentLogger

	mu      sync.Mutex
	results map[string]*Result
}

// New builds an Executor over a prepared task graph.
func New(completeGraph *graph.CompleteGraph, engine *core.Engine, taskGraph *dag.AcyclicGraph, sharedCache *cache.SharedCache, keyBuilder *hash.CacheKeyBuilder, procs *process.Manager, hlog hclog.Logger, opts Options) *Executor {
	return &Executor{
		graph:   completeGraph,
		tasks:   taskGraph,
		cache:   sharedCache,
		keys:    keyBuilder,
		procs:   procs,
		logger:  hlog.Named("execer"),
		opts:    opts,
		colors:  colorcache.New(),
		status:  logger.NewConcurrent(logger.New()),
		results: make(map[string]*Result),
	}
}

// Results returns every completed task's Result, for a run summary.
func (e *Executor) Results() map[string]*Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*Result, len(e.results))
	for k, v := range e.results {
		out[k] = v
	}
	return out
}

func (e *Executor) result(taskID string) (*Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.results[taskID]
	return r, ok
}

func (e *Executor) setResult(taskID string, r *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[taskID] = r
}

// directDependencies mirrors internal/scheduler's edge walk: an edge
// Connect(BasicEdge(dependent, dependency)) means dependent (Source)
// depends on dependency (Target).
func (e *Executor) directDependencies(taskID string) []string {
	var deps []string
	for _, edge := range e.tasks.Edges() {
		if fmt.Sprint(edge.Source()) == taskID {
			target := fmt.Sprint(edge.Target())
			if !strings.Contains(target, core.ROOT_NODE_NAME) {
				deps = append(deps, target)
			}
		}
	}
	return deps
}

// Visitor adapts Run to the scheduler.Visitor / core.Engine.Visitor shape.
func (e *Executor) Visitor() func(taskID string) error {
	return e.Run
}

// Run executes spec.md §4.5's lifecycle for a single leaf: fail fast if a
// direct dependency failed, try the shared cache, fall back to the
// done-file incremental check, otherwise spawn the command, then persist
// a done-file and (when cacheable) a cache entry.
func (e *Executor) Run(taskID string) error {
	start := time.Now()

	for _, dep := range e.directDependencies(taskID) {
		if r, ok := e.result(dep); ok && r.Status == StatusFailed {
			e.setResult(taskID, &Result{TaskID: taskID, Status: StatusFailed})
			return fmt.Errorf("%s: upstream task %s failed", taskID, dep)
		}
	}

	td, ok := e.graph.LookupTaskDefinition(taskID)
	if !ok {
		return errs.Dependency("no task definition for %q", taskID)
	}

	if !td.Script {
		// GroupTask: purely structural, nothing to run.
		e.setResult(taskID, &Result{TaskID: taskID, Status: StatusUpToDate, Duration: time.Since(start)})
		return nil
	}

	pkgName, taskName := util.GetPackageTaskFromId(taskID)
	pkg, workDir, err := e.resolvePackage(pkgName)
	if err != nil {
		return err
	}
	command, ok := pkg.Scripts[taskName]
	if !ok {
		e.setResult(taskID, &Result{TaskID: taskID, Status: StatusUpToDate, Duration: time.Since(start)})
		return nil
	}

	pt := &nodes.PackageTask{
		TaskID:         taskID,
		Task:           taskName,
		PackageName:    pkgName,
		Pkg:            pkg,
		TaskDefinition: *td,
		Dir:            pkg.Dir,
		Command:        command,
		Outputs:        td.Outputs,
	}

	upstreamHashes := e.upstreamHashes(taskID)

	key, keyInputs, err := e.keys.Build(hash.TaskHashInputs{
		TaskID:         taskID,
		PackagePath:    pkg.Dir,
		Command:        command,
		TaskDefinition: *td,
		UpstreamHashes: upstreamHashes,
		EnvVars:        e.opts.EnvVars,
	})
	if err != nil {
		return errs.Wrap(errs.KindExecution, err, fmt.Sprintf("computing cache key for %s", taskID))
	}

	donePath := donefile.Path(workDir, taskID)
	expectedDone := &donefile.DoneFile{
		TaskID: taskID,
		Files:  fingerprintsFromHashes(keyInputs.InputHashes),
		Config: map[string]string{"command": command, "envMode": keyInputs.EnvMode},
	}

	if pt.IsCacheable() {
		if man, hit, lookupErr := e.cache.Lookup(key); lookupErr == nil && hit {
			restoreResult, restoreErr := e.cache.Restore(key, man, workDir.ToString())
			if restoreErr == nil && restoreResult.Success {
				e.logger.Debug("cache hit", "task", taskID, "key", key)
				if e.opts.Verbose {
					writeReplay(e.logger, taskID, man.Stdout, man.Stderr)
				}
				donefile.Write(donePath, expectedDone)
				doneHash, _ := expectedDone.Hash()
				e.printStatus(pt, StatusCachedSuccess, time.Since(start))
				e.setResult(taskID, &Result{TaskID: taskID, Status: StatusCachedSuccess, CacheKey: key, DoneFileHash: doneHash, Duration: time.Since(start)})
				return nil
			}
		}
	}

	if upToDate, checkErr := donefile.IsUpToDate(donePath, expectedDone); checkErr == nil && upToDate {
		e.logger.Debug("up to date via done-file", "task", taskID)
		doneHash, _ := expectedDone.Hash()
		e.printStatus(pt, StatusUpToDate, time.Since(start))
		e.setResult(taskID, &Result{TaskID: taskID, Status: StatusUpToDate, CacheKey: key, DoneFileHash: doneHash, Duration: time.Since(start)})
		return nil
	}

	if e.opts.DryRun {
		e.logger.Info("would run", "task", taskID, "command", command)
		e.setResult(taskID, &Result{TaskID: taskID, Status: StatusUpToDate, CacheKey: key, Duration: time.Since(start)})
		return nil
	}

	stdout, stderr, execErr := e.spawn(pt, workDir)
	duration := time.Since(start)

	if execErr != nil {
		donefile.Delete(donePath)
		e.printStatus(pt, StatusFailed, duration)
		e.setResult(taskID, &Result{TaskID: taskID, Status: StatusFailed, Duration: duration, Stdout: stdout, Stderr: stderr})
		return errs.Wrap(errs.KindExecution, execErr, fmt.Sprintf("task %s failed", taskID))
	}

	if err := donefile.Write(donePath, expectedDone); err != nil {
		e.logger.Warn("failed to write done-file", "task", taskID, "error", err)
	}
	doneHash, _ := expectedDone.Hash()

	status := StatusSuccess
	if pt.IsCacheable() && len(td.Outputs) > 0 {
		writeTaskLog(workDir, pt, stdout, stderr)
		outputs := resolveOutputs(workDir, pt.HashableOutputs())
		storeRes, storeErr := e.cache.Store(cache.StoreRequest{
			TaskID:           taskID,
			Key:              key,
			Inputs:           keyInputs.InputHashes,
			OutputPaths:      outputs,
			WorkingDirectory: workDir.ToString(),
			Stdout:           stdout,
			Stderr:           stderr,
			ExitCode:         0,
			ExecutionTime:    duration,
		})
		if storeErr != nil {
			e.logger.Warn("failed to store cache entry", "task", taskID, "error", storeErr)
		} else if storeRes.Success {
			status = StatusSuccessWithCacheWrite
		}
	}

	e.printStatus(pt, status, duration)
	e.setResult(taskID, &Result{
		TaskID: taskID, Status: status, CacheKey: key, DoneFileHash: doneHash,
		Duration: duration, Stdout: stdout, Stderr: stderr,
	})
	return nil
}

// upstreamHashes collects each direct dependency's done-file hash - the
// cascading invalidation mechanism of spec.md §4.5 step 3: a dependency's
// changed outputs changes its done-file content, which changes this
// task's key.
func (e *Executor) upstreamHashes(taskID string) []string {
	var hashes []string
	for _, dep := range e.directDependencies(taskID) {
		if r, ok := e.result(dep); ok && r.DoneFileHash != "" {
			hashes = append(hashes, r.DoneFileHash)
		}
	}
	sort.Strings(hashes)
	return hashes
}

// resolvePackage finds a package's manifest and working directory.
// util.RootPkgName has no catalog entry (discovery only scans sub-package
// manifests), so a root-scoped task reads the repo root's own
// package.json directly, if one exists.
func (e *Executor) resolvePackage(pkgName string) (*manifest.Package, syspath.AbsoluteSystemPath, error) {
	if pkgName == util.RootPkgName {
		rootManifest := e.graph.RepoRoot.UntypedJoin("package.json")
		pkg, err := manifest.ReadPackage(rootManifest)
		if err != nil {
			return nil, "", errs.IO(err, "root task requires a package.json at the workspace root")
		}
		return pkg, e.graph.RepoRoot, nil
	}

	pkg, ok := e.graph.WorkspaceInfos.Packages[pkgName]
	if !ok {
		return nil, "", errs.Dependency("could not find package %q", pkgName)
	}
	return pkg, pkg.Dir.RestoreAnchor(e.graph.RepoRoot), nil
}

// spawn runs command through a shell in workDir, with workDir itself
// prepended to PATH so an executable in the package directory resolves
// (subdirectories such as node_modules/.bin are not added),
// capturing stdout/stderr for both live streaming and cache storage. In
// verbose mode, output is also streamed live through a logstreamer
// prefixed with the task's own color, so concurrent tasks' interleaved
// output stays attributable.
func (e *Executor) spawn(pt *nodes.PackageTask, workDir syspath.AbsoluteSystemPath) (string, string, error) {
	cmd := exec.Command("sh", "-c", pt.Command)
	cmd.Dir = workDir.ToString()
	cmd.Env = append(os.Environ(), "PATH="+workDir.ToString()+string(os.PathListSeparator)+os.Getenv("PATH"))

	var stdoutBuf, stderrBuf bytes.Buffer
	if e.opts.Verbose {
		prefix := e.colors.PrefixWithColor(pt.TaskID, pt.OutputPrefix())
		stdoutStream := logstreamer.NewLogstreamer(e.logger.StandardLogger(nil), prefix, false)
		stderrStream := logstreamer.NewLogstreamer(e.logger.StandardLogger(nil), prefix, false)
		defer stdoutStream.Close()
		defer stderrStream.Close()
		cmd.Stdout = io.MultiWriter(&stdoutBuf, stdoutStream)
		cmd.Stderr = io.MultiWriter(&stderrBuf, stderrStream)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err := e.procs.Exec(cmd)
	return stdoutBuf.String(), stderrBuf.String(), err
}

// printStatus writes one colored, prefixed line per finished task through
// a logger.ConcurrentLogger shared across every worker goroutine, so lines
// from tasks finishing at the same instant don't interleave mid-write.
func (e *Executor) printStatus(pt *nodes.PackageTask, status Status, duration time.Duration) {
	line := fmt.Sprintf("%s %s", pt.OutputPrefix(), duration.Truncate(time.Millisecond))
	if status == StatusFailed {
		e.status.Printf("%s", e.status.Errorf("%s", line).Error())
		return
	}
	e.status.Printf("%s", e.status.Sucessf("%s (%s)", line, status))
}

// writeTaskLog persists a task's combined stdout/stderr to its own log
// file under workDir, so the log file path nodes.PackageTask.HashableOutputs
// names is a real file the cache can pick up alongside declared outputs.
func writeTaskLog(workDir syspath.AbsoluteSystemPath, pt *nodes.PackageTask, stdout, stderr string) {
	outputs := pt.HashableOutputs()
	if len(outputs) == 0 {
		return
	}
	logPath := workDir.UntypedJoin(outputs[0])
	if err := os.MkdirAll(filepath.Dir(logPath.ToString()), 0o755); err != nil {
		return
	}
	os.WriteFile(logPath.ToString(), []byte(stdout+stderr), 0o644)
}

// resolveOutputs expands a task's declared output globs (relative to
// workDir) into the concrete, existing file list Store needs.
func resolveOutputs(workDir syspath.AbsoluteSystemPath, globs []string) []string {
	exclude := []string{}
	matches := globby.GlobFiles(workDir.ToString(), &globs, &exclude)
	rels := make([]string, 0, len(matches))
	for _, m := range matches {
		if rel, err := filepath.Rel(workDir.ToString(), m); err == nil {
			rels = append(rels, rel)
		}
	}
	sort.Strings(rels)
	return rels
}

// fingerprintsFromHashes turns a sorted list of input-file content hashes
// into done-file fingerprints keyed by their own hash - the done-file
// itself only needs to detect "did this set of hashes change", not
// re-derive file paths.
func fingerprintsFromHashes(hashes []string) []donefile.FileFingerprint {
	out := make([]donefile.FileFingerprint, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, donefile.FileFingerprint{Path: h, Hash: h})
	}
	return out
}

func writeReplay(logger hclog.Logger, taskID, stdout, stderr string) {
	if stdout != "" {
		logger.Info(stdout, "task", taskID, "stream", "stdout")
	}
	if stderr != "" {
		logger.Info(stderr, "task", taskID, "stream", "stderr")
	}
}
