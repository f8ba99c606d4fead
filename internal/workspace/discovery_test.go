package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/sailbuild/sail/internal/syspath"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(filepath.Dir(path), 0775))
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestDiscoverHonorsExcludeGlobsAndEnv(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sail.json"), `{
		"excludeGlobs": ["packages/skip/**"],
		"tasks": {"build": {"script": true}}
	}`)
	writeFile(t, filepath.Join(root, "packages/alpha/package.json"), `{"name": "alpha"}`)
	writeFile(t, filepath.Join(root, "packages/skip/package.json"), `{"name": "skip-me"}`)
	writeFile(t, filepath.Join(root, "packages/beta/package.json"), `{"name": "beta", "dependencies": {"alpha": "*"}}`)

	t.Setenv("SAIL_IGNORE_FILES", "")

	project, err := Discover(syspath.AbsoluteSystemPathFromUpstream(root))
	assert.NilError(t, err)
	assert.Equal(t, project.ConfigurationSource, ConfigSourceFile)
	assert.Equal(t, len(project.Packages.Packages), 2)
	_, hasSkipped := project.Packages.Packages["skip-me"]
	assert.Equal(t, hasSkipped, false)
	beta := project.Packages.Packages["beta"]
	assert.DeepEqual(t, beta.WorkspaceDeps, []string{"alpha"})
}

func TestDiscoverRejectsDuplicatePackageNames(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sail.json"), `{"tasks": {}}`)
	writeFile(t, filepath.Join(root, "packages/a/package.json"), `{"name": "dup"}`)
	writeFile(t, filepath.Join(root, "packages/b/package.json"), `{"name": "dup"}`)

	_, err := Discover(syspath.AbsoluteSystemPathFromUpstream(root))
	assert.ErrorContains(t, err, "duplicate package name")
}
