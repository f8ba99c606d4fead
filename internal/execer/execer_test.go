package execer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pyr-sh/dag"

	sailcache "github.com/sailbuild/sail/internal/cache"
	"github.com/sailbuild/sail/internal/core"
	"github.com/sailbuild/sail/internal/graph"
	"github.com/sailbuild/sail/internal/hash"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/process"
	"github.com/sailbuild/sail/internal/syspath"
	"github.com/sailbuild/sail/internal/workspace"
)

func buildTestGraph(t *testing.T, repoRoot string, outputs []string) (*graph.CompleteGraph, *core.Engine) {
	t.Helper()

	pkgDir := filepath.Join(repoRoot, "packages", "web")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "src.txt"), []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}

	pkg := &manifest.Package{
		Name:    "web",
		Scripts: map[string]string{"build": "echo building > dist.txt"},
		Dir:     syspath.AnchoredSystemPathFromUpstream(filepath.Join("packages", "web")),
	}

	cfg := &manifest.BuildConfig{
		Tasks: map[string]manifest.TaskDefinition{
			"build": {Script: true, Outputs: outputs, Inputs: []string{"src.txt"}},
		},
	}

	catalog := workspace.Catalog{Packages: map[string]*manifest.Package{"web": pkg}}
	cg := graph.NewCompleteGraph(syspath.AbsoluteSystemPathFromUpstream(repoRoot), catalog, cfg)

	engine := core.NewEngine(cg)
	if err := engine.Prepare(&core.EngineBuildingOptions{Packages: []string{"web"}, TaskNames: []string{"build"}}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	return cg, engine
}

func buildTestExecutor(t *testing.T, repoRoot string, outputs []string) (*Executor, *dag.AcyclicGraph) {
	t.Helper()
	cg, engine := buildTestGraph(t, repoRoot, outputs)

	logger := hclog.NewNullLogger()
	fhc := hash.NewFileHashCache()
	keyBuilder := hash.NewCacheKeyBuilder(fhc, cg.RepoRoot, "globalhash")

	sc, err := sailcache.New(sailcache.Options{Dir: syspath.AbsoluteSystemPathFromUpstream(t.TempDir())})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	procs := process.NewManager(logger)
	ex := New(cg, engine, engine.TaskGraph, sc, keyBuilder, procs, logger, Options{})
	return ex, engine.TaskGraph
}

func TestRunExecutesAndCaches(t *testing.T) {
	repoRoot := t.TempDir()
	ex, _ := buildTestExecutor(t, repoRoot, []string{"dist.txt"})

	if err := ex.Run("web#build"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	result, ok := ex.result("web#build")
	if !ok {
		t.Fatal("expected a recorded result")
	}
	if result.Status != StatusSuccess && result.Status != StatusSuccessWithCacheWrite {
		t.Fatalf("unexpected status after first run: %s", result.Status)
	}

	distPath := filepath.Join(repoRoot, "packages", "web", "dist.txt")
	if _, err := os.Stat(distPath); err != nil {
		t.Fatalf("expected dist.txt to exist: %v", err)
	}
}

func TestRunIsUpToDateOnSecondCall(t *testing.T) {
	repoRoot := t.TempDir()
	ex, _ := buildTestExecutor(t, repoRoot, []string{"dist.txt"})

	if err := ex.Run("web#build"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := ex.Run("web#build"); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	result, _ := ex.result("web#build")
	if result.Status != StatusUpToDate && result.Status != StatusCachedSuccess {
		t.Fatalf("expected the second run to be a cache hit or up to date, got %s", result.Status)
	}
}

func TestRunFailsUpstreamSkipsDependent(t *testing.T) {
	repoRoot := t.TempDir()
	ex, _ := buildTestExecutor(t, repoRoot, []string{"dist.txt"})

	ex.setResult("web#lint", &Result{TaskID: "web#lint", Status: StatusFailed})
	ex.tasks.Add("web#build")
	ex.tasks.Add("web#lint")
	ex.tasks.Connect(dag.BasicEdge("web#build", "web#lint"))

	err := ex.Run("web#build")
	if err == nil {
		t.Fatal("expected Run to fail fast when a direct dependency failed")
	}
	result, ok := ex.result("web#build")
	if !ok || result.Status != StatusFailed {
		t.Fatalf("expected a Failed result, got %+v", result)
	}
}
