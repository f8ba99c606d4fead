package policy

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/sailbuild/sail/internal/syspath"
)

// Confirmer is asked whether to apply instance's resolver to file. The
// default, InteractiveConfirm, prompts over survey when stdin is a TTY and
// always answers true otherwise (so a non-interactive `policy fix --yes`
// or a CI run never blocks on input).
type Confirmer func(instance Instance, file string) bool

// InteractiveConfirm prompts for confirmation via survey when stdin looks
// like a terminal; otherwise it answers true, matching `--yes` semantics
// for non-interactive invocations (CI, pipes).
func InteractiveConfirm(instance Instance, file string) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return true
	}
	confirmed := false
	prompt := &survey.Confirm{
		Message: "Apply fix for " + instance.Policy.Name + " to " + file + "?",
		Default: true,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false
	}
	return confirmed
}

// AlwaysConfirm skips the prompt entirely, for `policy fix --yes` and for
// tests.
func AlwaysConfirm(Instance, string) bool { return true }

// Engine runs a policy registry over a file-set.
type Engine struct {
	Root     syspath.AbsoluteSystemPath
	Files    FileLister
	Registry []Instance
	Logger   hclog.Logger
	Confirm  Confirmer
}

// New builds an Engine with sane defaults (AlwaysConfirm) for non-fix or
// programmatic use; callers driving `policy fix` interactively should set
// Confirm to InteractiveConfirm explicitly.
func New(root syspath.AbsoluteSystemPath, files FileLister, registry []Instance, logger hclog.Logger) *Engine {
	return &Engine{Root: root, Files: files, Registry: registry, Logger: logger, Confirm: AlwaysConfirm}
}

// FileReport is one (file, policy) pair's outcome.
type FileReport struct {
	File   string
	Policy string
	Result Result
}

// Timing accumulates elapsed wall time for one policy's action.
type Timing struct {
	Policy  string
	Action  string
	Elapsed time.Duration
}

// Report is the outcome of a full engine Run.
type Report struct {
	RunID         string
	FilesTotal    int
	FilesExcluded int
	FilesChecked  int
	Reports       []FileReport
	Timings       []Timing
}

// Failed reports whether any file failed its policy (Failure or
// FixFailed survived to the end of the run).
func (r *Report) Failed() bool {
	for _, fr := range r.Reports {
		switch fr.Result.(type) {
		case Failure, FixFailed:
			return true
		}
	}
	return false
}

type telemetry struct {
	mu      sync.Mutex
	elapsed map[[2]string]time.Duration
}

func newTelemetry() *telemetry { return &telemetry{elapsed: make(map[[2]string]time.Duration)} }

func (t *telemetry) record(policy, action string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elapsed[[2]string{policy, action}] += d
}

func (t *telemetry) timings() []Timing {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Timing, 0, len(t.elapsed))
	for k, d := range t.elapsed {
		out = append(out, Timing{Policy: k[0], Action: k[1], Elapsed: d})
	}
	return out
}

// Run walks every file in the engine's file-set, dispatching each
// applicable policy's handler (and, when resolve is true, its resolver on
// an auto-fixable failure) sequentially within a file but in parallel
// across files (spec.md §4.7).
func (e *Engine) Run(ctx context.Context, resolve bool) (*Report, error) {
	allFiles, err := e.Files.ListFiles(e.Root)
	if err != nil {
		return nil, err
	}
	allFiles = normalizeSlashes(allFiles)

	excluded := 0
	var checked []string
	for _, f := range allFiles {
		if e.matchesAny(f) {
			checked = append(checked, f)
		} else {
			excluded++
		}
	}

	tel := newTelemetry()
	reportsCh := make(chan FileReport, len(checked))

	g, gctx := errgroup.WithContext(ctx)
	for _, file := range checked {
		file := file
		g.Go(func() error {
			return e.runFile(gctx, file, resolve, tel, reportsCh)
		})
	}

	runErr := g.Wait()
	close(reportsCh)

	report := &Report{
		RunID:         uuid.NewString(),
		FilesTotal:    len(allFiles),
		FilesExcluded: excluded,
		FilesChecked:  len(checked),
		Timings:       tel.timings(),
	}
	for fr := range reportsCh {
		report.Reports = append(report.Reports, fr)
	}
	return report, runErr
}

// matchesAny reports whether at least one registered policy instance's
// Match pattern applies to file.
func (e *Engine) matchesAny(file string) bool {
	for _, in := range e.Registry {
		if in.appliesTo(file) {
			return true
		}
	}
	return false
}

// runFile dispatches every applicable policy against file, one at a time,
// so two policies never race over the same file's content.
func (e *Engine) runFile(ctx context.Context, file string, resolve bool, tel *telemetry, out chan<- FileReport) error {
	for _, instance := range e.Registry {
		if !instance.appliesTo(file) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		args := HandlerArgs{File: file, Root: e.Root, Resolve: resolve, Config: instance.Config}

		start := time.Now()
		result, err := dispatch(ctx, instance.Policy.Handler, args)
		tel.record(instance.Policy.Name, "handle", time.Since(start))
		if err != nil {
			return err
		}

		if resolve {
			if failure, ok := result.(Failure); ok && failure.AutoFixable && instance.Policy.Resolver != nil {
				if e.confirmer()(instance, file) {
					result = e.resolve(ctx, instance, args, tel)
				}
			}
		}

		out <- FileReport{File: file, Policy: instance.Policy.Name, Result: result}
		if e.Logger != nil {
			e.Logger.Debug("policy checked", "policy", instance.Policy.Name, "file", file, "result", result)
		}
	}
	return nil
}

// resolve invokes instance's resolver then re-runs its handler to confirm
// the fix actually stuck, per spec.md §4.7.
func (e *Engine) resolve(ctx context.Context, instance Instance, args HandlerArgs, tel *telemetry) Result {
	start := time.Now()
	fixResult, err := dispatch(ctx, instance.Policy.Resolver, args)
	tel.record(instance.Policy.Name, "resolve", time.Since(start))
	if err != nil {
		return Failure{Message: err.Error()}
	}

	recheckStart := time.Now()
	recheck, err := dispatch(ctx, instance.Policy.Handler, args)
	tel.record(instance.Policy.Name, "handle", time.Since(recheckStart))
	if err != nil {
		return Failure{Message: err.Error()}
	}
	if failure, stillFailing := recheck.(Failure); stillFailing {
		return FixFailed{Message: failure.Message}
	}

	if fr, ok := fixResult.(FixResult); ok {
		return fr
	}
	return FixResult{Fixed: true}
}

func (e *Engine) confirmer() Confirmer {
	if e.Confirm != nil {
		return e.Confirm
	}
	return AlwaysConfirm
}
