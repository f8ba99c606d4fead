package config

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/sailbuild/sail/internal/syspath"
)

func TestLoadBuildConfigStripsComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sail.json")
	contents := `{
		// tasks table
		"tasks": {
			"build": {
				"dependsOn": ["^build"],
				"script": true,
				"outputs": ["dist/**"] /* build output */
			}
		},
		"excludeGlobs": ["**/fixtures/**"]
	}`
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := LoadBuildConfig(syspath.AbsoluteSystemPathFromUpstream(path))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Tasks["build"].Script, true)
	assert.DeepEqual(t, cfg.Tasks["build"].DependsOn, []string{"^build"})
	assert.DeepEqual(t, cfg.ExcludeGlobs, []string{"**/fixtures/**"})
}

func TestCheckToolVersionCompatible(t *testing.T) {
	ok, err := CheckToolVersionCompatible("5.2.0", "5.1.0", ">=5.0.0")
	assert.NilError(t, err)
	assert.Equal(t, ok, true)

	ok, err = CheckToolVersionCompatible("5.2.0", "4.9.0", ">=5.0.0")
	assert.NilError(t, err)
	assert.Equal(t, ok, false)
}
