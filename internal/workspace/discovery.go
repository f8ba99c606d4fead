package workspace

import (
	"os"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	mapset "github.com/deckarep/golang-set"
	"github.com/yookoala/realpath"

	"github.com/sailbuild/sail/internal/config"
	"github.com/sailbuild/sail/internal/errs"
	"github.com/sailbuild/sail/internal/fs/globby"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
)

// RootConfigFilename is the name of the workspace-level build config file,
// searched for while walking upward from the discovery start path.
const RootConfigFilename = "sail.json"

// PackageManifestFilename is the name of each package's own manifest file.
const PackageManifestFilename = "package.json"

// EnvIgnoreFiles is the environment variable holding a comma-separated list
// of additional exclude globs, honored alongside the config's ExcludeGlobs.
const EnvIgnoreFiles = "SAIL_IGNORE_FILES"

// Discover locates the build project root starting from searchPath,
// enumerates its packages, and groups them into release groups.
//
// Config discovery walks upward for RootConfigFilename. If none is found,
// a second walk visits the ancestors holding a package manifest and accepts
// one only when a RootConfigFilename sits beside it. The first walk has
// already searched those directories, so the second one finds no root and
// Discover returns a ConfigError: a root is not inferred from a package
// manifest alone. excludeGlobs
// from that configuration AND SAIL_IGNORE_FILES are both honored by the
// package scan; an earlier implementation discarded excludeGlobs, which is
// the bug this discovery fixes.
func Discover(searchPath syspath.AbsoluteSystemPath) (*BuildProject, error) {
	resolved, err := resolveSymlinks(searchPath)
	if err != nil {
		return nil, errs.IO(err, "could not resolve search path %s", searchPath.ToString())
	}

	root, source, cfg, err := locateRoot(resolved)
	if err != nil {
		return nil, err
	}

	catalog, err := scanPackages(root, cfg)
	if err != nil {
		return nil, err
	}

	project := &BuildProject{
		Root:                root,
		ConfigurationSource: source,
		Config:              cfg,
		Packages:            catalog,
		ReleaseGroups:       groupByReleaseGroup(catalog),
	}
	return project, nil
}

func resolveSymlinks(p syspath.AbsoluteSystemPath) (syspath.AbsoluteSystemPath, error) {
	real, err := realpath.Realpath(p.ToString())
	if err != nil {
		return p, nil // best-effort: fall back to the path as given
	}
	return syspath.AbsoluteSystemPathFromUpstream(real), nil
}

// locateRoot implements the two-step root-finding contract: prefer an
// explicit RootConfigFilename; otherwise infer from the nearest package
// manifest whose directory is itself a workspace root (declares Packages).
func locateRoot(start syspath.AbsoluteSystemPath) (syspath.AbsoluteSystemPath, ConfigSource, *manifest.BuildConfig, error) {
	if found, err := start.Findup(RootConfigFilename); err == nil {
		cfg, loadErr := config.LoadBuildConfig(found)
		if loadErr != nil {
			return "", "", nil, loadErr
		}
		return found.Dir(), ConfigSourceFile, cfg, nil
	}

	cursor := start
	for {
		manifestPath, err := cursor.Findup(PackageManifestFilename)
		if err != nil {
			return "", "", nil, errs.Config("no %s found while walking up from %s", RootConfigFilename, start.ToString()).
				WithRemediation("create a sail.json at the root of your workspace")
		}
		dir := manifestPath.Dir()
		if cfg, ok := tryInferredConfig(dir); ok {
			return dir, ConfigSourceInferred, cfg, nil
		}
		// Keep walking above this manifest for one that is itself a
		// workspace root; Findup will fail once we reach the filesystem
		// root with nothing left to find, ending the loop above.
		cursor = dir.UntypedJoin("..")
	}
}

// tryInferredConfig loads a RootConfigFilename colocated with a package
// manifest, treating its presence as evidence this directory is the
// workspace root. It reports false when no such file is there or it does
// not load.
func tryInferredConfig(dir syspath.AbsoluteSystemPath) (*manifest.BuildConfig, bool) {
	candidate := dir.UntypedJoin(RootConfigFilename)
	if !candidate.FileExists() {
		return nil, false
	}
	cfg, err := config.LoadBuildConfig(candidate)
	if err != nil {
		return nil, false
	}
	return cfg, true
}

// scanPackages globs package manifests under root, honoring excludeGlobs
// from configuration and SAIL_IGNORE_FILES, and rejecting duplicate
// package names as a fatal ConfigError naming both locations.
func scanPackages(root syspath.AbsoluteSystemPath, cfg *manifest.BuildConfig) (Catalog, error) {
	exclude := append([]string{}, cfg.ExcludeGlobs...)
	exclude = append(exclude, "**/node_modules/**")
	if envGlobs := os.Getenv(EnvIgnoreFiles); envGlobs != "" {
		for _, g := range strings.Split(envGlobs, ",") {
			if g = strings.TrimSpace(g); g != "" {
				exclude = append(exclude, g)
			}
		}
	}

	matcher := gitignore.CompileIgnoreLines(exclude...)

	include := []string{"**/" + PackageManifestFilename}
	candidates := globby.GlobFiles(root.ToString(), &include, &[]string{})

	packages := make(map[string]*manifest.Package, len(candidates))
	locations := make(map[string]string, len(candidates))

	for _, candidatePath := range candidates {
		abs := syspath.AbsoluteSystemPathFromUpstream(candidatePath)
		rel, err := abs.RelativeTo(root)
		if err != nil {
			continue
		}
		if matcher.MatchesPath(rel.ToUnixPath().ToString()) {
			continue
		}

		pkg, err := manifest.ReadPackage(abs)
		if err != nil {
			return Catalog{}, errs.IO(err, "could not parse package manifest %s", abs.ToString())
		}
		pkg.PackageManifestPath = rel
		pkg.Dir = rel.Dir()

		if existing, ok := locations[pkg.Name]; ok {
			return Catalog{}, errs.Config("duplicate package name %q", pkg.Name).
				WithContext(map[string]interface{}{
					"first":  existing,
					"second": rel.ToString(),
				})
		}
		locations[pkg.Name] = rel.ToString()
		packages[pkg.Name] = pkg
	}

	attachWorkspaceDeps(packages)

	return Catalog{Packages: packages}, nil
}

// attachWorkspaceDeps resolves each package's declared dependencies against
// the catalog, recording the subset that are sibling workspace packages.
func attachWorkspaceDeps(packages map[string]*manifest.Package) {
	for _, pkg := range packages {
		deps := mapset.NewSet()
		for _, depMap := range []map[string]string{pkg.Dependencies, pkg.DevDependencies, pkg.OptionalDependencies} {
			for dep := range depMap {
				if _, ok := packages[dep]; ok {
					deps.Add(dep)
				}
			}
		}
		resolved := make([]string, 0, deps.Cardinality())
		for _, d := range deps.ToSlice() {
			resolved = append(resolved, d.(string))
		}
		pkg.WorkspaceDeps = resolved
	}
}

func groupByReleaseGroup(catalog Catalog) map[string]*ReleaseGroup {
	groups := make(map[string]*ReleaseGroup)
	for name, pkg := range catalog.Packages {
		key := pkg.ReleaseGroup
		if key == "" {
			key = "default"
		}
		group, ok := groups[key]
		if !ok {
			group = &ReleaseGroup{Name: key}
			groups[key] = group
		}
		group.Packages = append(group.Packages, name)
	}
	return groups
}
