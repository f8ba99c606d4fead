// Package workspace discovers a build project's root, enumerates its
// packages, and groups them into release groups.
package workspace

import (
	"sort"

	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
)

// ConfigSource identifies how the project root was located.
type ConfigSource string

const (
	// ConfigSourceFile means a sail.json was found by walking upward.
	ConfigSourceFile ConfigSource = "config-file"
	// ConfigSourceInferred means the root was accepted by locateRoot's
	// second, manifest-based walk; that walk also requires a sail.json
	// beside the manifest.
	ConfigSourceInferred ConfigSource = "inferred"
)

// ReleaseGroup is a named collection of packages that version together.
type ReleaseGroup struct {
	Name     string
	Packages []string
}

// Catalog holds every package discovered for a build project, keyed by
// package name.
type Catalog struct {
	Packages map[string]*manifest.Package
}

// BuildProject is the result of workspace discovery: the resolved root,
// how that root was found, the package catalog, and release-group
// membership.
type BuildProject struct {
	Root                syspath.AbsoluteSystemPath
	ConfigurationSource  ConfigSource
	Config               *manifest.BuildConfig
	Packages             Catalog
	ReleaseGroups        map[string]*ReleaseGroup
}

// Names returns the sorted package names in the catalog. Sorting makes
// diagnostics (and cache-key-adjacent output orderings) reproducible.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Packages))
	for name := range c.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
