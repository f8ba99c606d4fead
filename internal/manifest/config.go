package manifest

// BuildConfig is the parsed sail.json build configuration at the root of a
// workspace. Comments are permitted in the on-disk file (see
// internal/config, which parses it through jsonc before handing the result
// here).
type BuildConfig struct {
	// BaseBranch is the git branch scope filters diff against.
	BaseBranch string `json:"baseBranch,omitempty"`
	// GlobalDependencies are repo-relative globs that participate in every
	// task's global hash component, regardless of package.
	GlobalDependencies []string `json:"globalDependencies,omitempty"`
	// GlobalEnv lists environment variable names that participate in the
	// global hash.
	GlobalEnv []string `json:"globalEnv,omitempty"`
	// ExcludeGlobs are globs excluded from package discovery, in addition to
	// the implicit **/node_modules/** exclusion. Honoring this list is an
	// explicit requirement: an earlier implementation discarded it.
	ExcludeGlobs []string `json:"excludeGlobs,omitempty"`
	// CacheOptions configures the SharedCache.
	CacheOptions CacheOptions `json:"cacheOptions,omitempty"`
	// Tasks maps a task name to its definition.
	Tasks map[string]TaskDefinition `json:"tasks"`
}

// CacheOptions configures the on-disk shared cache.
type CacheOptions struct {
	// Dir is the cache directory, overridden at runtime by SAIL_CACHE_DIR.
	Dir string `json:"dir,omitempty"`
	// MaxSizeBytes bounds the cache's on-disk footprint before LRU eviction
	// kicks in. Zero means "use the built-in default".
	MaxSizeBytes int64 `json:"maxSizeBytes,omitempty"`
	// RemoteURL is read from the config file; `sail build` does not pass it
	// to the cache, so no remote backend is constructed from it.
	RemoteURL string `json:"remoteUrl,omitempty"`
	// RemoteOnly is read from the config file; `sail build` does not pass
	// it to the cache, so the local cache is always used.
	RemoteOnly bool `json:"remoteOnly,omitempty"`
}

// TaskDefinition is one entry in a BuildConfig's Tasks table.
type TaskDefinition struct {
	// DependsOn lists dependency references: a bare "name" is a same-package
	// dependency, "^name" is a topological (workspace-dependency) reference,
	// and "pkg#name" is an explicit cross-package reference.
	DependsOn []string `json:"dependsOn,omitempty"`
	// Script marks this task as a leaf whose command comes from the
	// package's own scripts table. When false the task is purely
	// structural (a GroupTask); when the task name appears in neither the
	// config nor the package's scripts, dependents silently skip it.
	Script bool `json:"script,omitempty"`
	// Outputs are globs, relative to the package directory, of files the
	// task produces and that SharedCache should capture.
	Outputs []string `json:"outputs,omitempty"`
	// Inputs are globs, relative to the package directory, restricting
	// which files participate in this task's cache key; when empty, Sail
	// falls back to the package's tracked files.
	Inputs []string `json:"inputs,omitempty"`
	// Cache disables caching for this task entirely when explicitly false.
	Cache *bool `json:"cache,omitempty"`
	// Weight is the task's intrinsic scheduling weight; the scheduler adds
	// the weights of all transitive parent leaves to bias long critical
	// paths earlier. Defaults to 1 when zero.
	Weight int `json:"weight,omitempty"`
	// Worker routes execution to the worker-thread pool when true and the
	// task supports it.
	Worker bool `json:"worker,omitempty"`
	// Env lists task-specific environment variable names that participate
	// in this task's cache key, beyond BuildConfig.GlobalEnv.
	Env []string `json:"env,omitempty"`
	// EnvMode selects how undeclared environment variables affect the
	// cache key: "strict" hashes only declared vars, "loose" hashes the
	// full environment, "infer" (default) hashes the same vars as strict.
	EnvMode string `json:"envMode,omitempty"`
}

// CacheEnabled reports whether this task participates in the shared cache.
func (t TaskDefinition) CacheEnabled() bool {
	return t.Cache == nil || *t.Cache
}

// IntrinsicWeight returns the task's configured weight, defaulting to 1.
func (t TaskDefinition) IntrinsicWeight() int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}
