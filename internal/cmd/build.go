package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sailbuild/sail/internal/analytics"
	"github.com/sailbuild/sail/internal/cache"
	"github.com/sailbuild/sail/internal/cmdutil"
	"github.com/sailbuild/sail/internal/core"
	"github.com/sailbuild/sail/internal/errs"
	"github.com/sailbuild/sail/internal/execer"
	"github.com/sailbuild/sail/internal/graph"
	"github.com/sailbuild/sail/internal/hash"
	"github.com/sailbuild/sail/internal/process"
	"github.com/sailbuild/sail/internal/scheduler"
	"github.com/sailbuild/sail/internal/signals"
	"github.com/sailbuild/sail/internal/spinner"
	"github.com/sailbuild/sail/internal/summary"
	"github.com/sailbuild/sail/internal/syspath"
	"github.com/sailbuild/sail/internal/workspace"
)

// buildOpts holds the flags for `sail build`.
type buildOpts struct {
	packages    []string
	tasksOnly   bool
	concurrency int
	dryRun      bool
	summarize   bool
	verbose     bool
}

func (o *buildOpts) addFlags(flags *pflag.FlagSet) {
	flags.StringSliceVar(&o.packages, "filter", nil, "Restrict the run to the listed packages (repeatable)")
	flags.BoolVar(&o.tasksOnly, "only", false, "Run only the named tasks, without their transitive dependencies")
	flags.IntVar(&o.concurrency, "concurrency", 10, "Maximum number of concurrent tasks")
	flags.BoolVar(&o.dryRun, "dry-run", false, "Show what would run without executing anything")
	flags.BoolVar(&o.summarize, "summarize", false, "Write a JSON run summary to .sail/runs")
	flags.BoolVarP(&o.verbose, "verbose", "", false, "Stream task stdout/stderr as it runs")
}

// newBuildCommand builds the `sail build` subcommand: it orchestrates
// workspace discovery, task-graph construction, and the scheduled,
// cache-aware execution of every task (spec.md §4, §4.5).
func newBuildCommand(helper *cmdutil.Helper, signalWatcher *signals.Watcher) *cobra.Command {
	opts := &buildOpts{}
	cmd := &cobra.Command{
		Use:                   "build [...tasks]",
		Short:                 "Run one or more tasks across the workspace, incrementally",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return errs.Config("at least one task name is required")
			}
			return runBuild(base, signalWatcher, opts, args)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

func runBuild(base *cmdutil.CmdBase, signalWatcher *signals.Watcher, opts *buildOpts, tasks []string) error {
	startedAt := time.Now()

	project, err := workspace.Discover(base.RepoRoot)
	if err != nil {
		return err
	}

	pkgs := opts.packages
	if len(pkgs) == 0 {
		pkgs = project.Packages.Names()
	}

	completeGraph := graph.NewCompleteGraph(base.RepoRoot, project.Packages, base.BuildConfig)

	fhc := hash.NewFileHashCache()
	globalHash, _, err := hash.CalculateGlobalHash(base.RepoRoot, base.BuildConfig, fhc, base.Logger)
	if err != nil {
		return errs.Wrap(errs.KindExecution, err, "computing global hash")
	}
	completeGraph.GlobalHash = globalHash
	keyBuilder := hash.NewCacheKeyBuilder(fhc, base.RepoRoot, globalHash)

	engine := core.NewEngine(completeGraph)
	if err := engine.Prepare(&core.EngineBuildingOptions{
		Packages:  pkgs,
		TaskNames: tasks,
		TasksOnly: opts.tasksOnly,
	}); err != nil {
		return errs.Wrap(errs.KindDependency, err, "preparing task graph")
	}

	cacheOpts := base.BuildConfig.CacheOptions
	cacheDir := base.RepoRoot.UntypedJoin(".sail", "cache")
	if cacheOpts.Dir != "" {
		if filepath.IsAbs(cacheOpts.Dir) {
			cacheDir = syspath.AbsoluteSystemPathFromUpstream(cacheOpts.Dir)
		} else {
			cacheDir = base.RepoRoot.UntypedJoin(cacheOpts.Dir)
		}
	}
	sharedCache, err := cache.New(cache.Options{
		Dir:          cacheDir,
		MaxSizeBytes: cacheOpts.MaxSizeBytes,
		Logger:       base.Logger,
	})
	if err != nil {
		return errs.Wrap(errs.KindCache, err, "opening shared cache")
	}

	procs := process.NewManager(base.Logger)
	signalWatcher.AddOnClose(procs.Close)

	analyticsSink := analytics.NewFileSink(base.RepoRoot.UntypedJoin(".sail", "analytics.jsonl"))
	analyticsClient := analytics.NewClient(context.Background(), analyticsSink, base.Logger)
	defer analyticsClient.CloseWithTimeout(time.Second)

	executor := execer.New(completeGraph, engine, engine.TaskGraph, sharedCache, keyBuilder, procs, base.Logger, execer.Options{
		Verbose: opts.verbose,
		DryRun:  opts.dryRun,
	})

	sched := scheduler.New(completeGraph, engine)
	var runErrs []error
	run := func() { runErrs = sched.Execute(executor.Visitor(), scheduler.Options{Concurrency: opts.concurrency}) }
	if opts.verbose {
		run()
	} else if err := spinner.WaitFor(context.Background(), run, base.UI, "running tasks...", 200*time.Millisecond); err != nil {
		return errs.Wrap(errs.KindExecution, err, "waiting for tasks")
	}

	agg := &multierror.Error{}
	for _, e := range runErrs {
		agg = errs.Append(agg, e)
	}

	for taskID, result := range executor.Results() {
		analyticsClient.LogEvent(map[string]interface{}{
			"taskId":     taskID,
			"status":     string(result.Status),
			"durationMs": result.Duration.Milliseconds(),
			"cacheKey":   result.CacheKey,
		})
	}

	if opts.summarize {
		writeSummary(base, startedAt, pkgs, tasks, executor, runErrs)
	}

	if len(runErrs) > 0 {
		for _, e := range runErrs {
			base.LogWarning("", e)
		}
		return errs.Wrap(errs.KindExecution, agg, fmt.Sprintf("%d task(s) failed", len(runErrs)))
	}

	base.UI.Output(fmt.Sprintf("sail build finished %d task(s) in %s", len(executor.Results()), time.Since(startedAt).Truncate(time.Millisecond)))
	return nil
}

func writeSummary(base *cmdutil.CmdBase, startedAt time.Time, pkgs, tasks []string, executor *execer.Executor, runErrs []error) {
	sum := summary.New(startedAt, "", uuid.New(), append([]string{"build"}, tasks...), pkgs, tasks)
	for taskID, result := range executor.Results() {
		trace := sum.StartTrace(taskID)
		trace.SetHash(result.CacheKey)
		switch result.Status {
		case execer.StatusFailed:
			trace.SetFailed(fmt.Errorf("task failed"))
		case execer.StatusCachedSuccess, execer.StatusUpToDate:
			trace.SetResult(summary.TaskStateCached)
		default:
			trace.SetResult(summary.TaskStateCompleted)
		}
		trace.Finish()
	}
	summaryDir := base.RepoRoot.UntypedJoin(".sail", "runs")
	summaryPath := summaryDir.UntypedJoin(fmt.Sprintf("%s.json", startedAt.Format("20060102T150405")))
	if err := sum.Close(base.UI, "", summaryPath); err != nil {
		base.LogWarning("run summary", err)
	}
}
