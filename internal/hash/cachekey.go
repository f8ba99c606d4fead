package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sailbuild/sail/internal/env"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
)

// CanonicalHash returns the hex SHA-256 digest of v's canonical JSON
// encoding. encoding/json already sorts map keys on its own, which gives
// the stable field order spec.md's SharedCache.lookup requires without any
// hand-rolled canonicalization. A CacheKeyInputs value has its InputHashes
// sorted (on a copy) first, so their order does not change the digest.
func CanonicalHash(v interface{}) (string, error) {
	if k, ok := v.(CacheKeyInputs); ok {
		k.InputHashes = append([]string(nil), k.InputHashes...)
		sort.Strings(k.InputHashes)
		v = k
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// CacheKeyInputs is the canonical record hashed to produce a cache entry's
// identity (spec.md §4.2, §9 determinism invariant): every input that, if
// it changed, should produce a different key. Field order here doesn't
// matter for the hash (JSON marshaling of maps is already sorted, and
// InputHashes is sorted explicitly below) but is kept stable for
// readability in run-summary dumps.
type CacheKeyInputs struct {
	TaskID       string                       `json:"taskId"`
	GlobalHash   string                       `json:"globalHash"`
	PackageHash  string                       `json:"packageHash"`
	Command      string                       `json:"command"`
	InputHashes  []string                     `json:"inputHashes"`
	OutputGlobs  []string                     `json:"outputGlobs"`
	EnvMode      string                       `json:"envMode"`
	HashedEnv    env.EnvironmentVariablePairs `json:"hashedEnv"`
	UpstreamKeys []string                     `json:"upstreamKeys"`
}

// CacheKeyBuilder resolves the inputs listed in CacheKeyInputs for a single
// task and hashes them into one cache key.
type CacheKeyBuilder struct {
	fhc        *FileHashCache
	rootPath   syspath.AbsoluteSystemPath
	globalHash string
}

// NewCacheKeyBuilder ties a FileHashCache to the root path and
// already-computed global hash a build run shares across every task.
func NewCacheKeyBuilder(fhc *FileHashCache, rootPath syspath.AbsoluteSystemPath, globalHash string) *CacheKeyBuilder {
	return &CacheKeyBuilder{fhc: fhc, rootPath: rootPath, globalHash: globalHash}
}

// TaskHashInputs is everything about a single task instance that
// CacheKeyBuilder.Build needs to compute its cache key.
type TaskHashInputs struct {
	TaskID         string
	PackagePath    syspath.AnchoredSystemPath
	Command        string
	TaskDefinition manifest.TaskDefinition
	// UpstreamHashes are the already-computed cache keys of this task's
	// direct dependencies, in dependency order; a change anywhere upstream
	// ripples forward without re-reading any of those files again.
	UpstreamHashes []string
	// EnvVars is the environment a loose-mode task hashes in full,
	// supplied by the caller since only the CLI's invocation environment
	// knows the full set.
	EnvVars map[string]string
}

// Build computes a task's cache key: its package's tracked-file hashes
// (restricted to TaskDefinition.Inputs when set), the global hash, the
// resolved command, declared outputs, hashed env vars per EnvMode, and the
// upstream dependency keys.
func (b *CacheKeyBuilder) Build(in TaskHashInputs) (string, CacheKeyInputs, error) {
	fileHashes, err := b.fhc.GetPackageFileHashes(b.rootPath, in.PackagePath, in.TaskDefinition.Inputs)
	if err != nil {
		return "", CacheKeyInputs{}, fmt.Errorf("hashing inputs for %q: %w", in.TaskID, err)
	}

	inputHashes := make([]string, 0, len(fileHashes))
	for _, digest := range fileHashes {
		inputHashes = append(inputHashes, digest)
	}
	sort.Strings(inputHashes)

	packageHash, err := CanonicalHash(fileHashes)
	if err != nil {
		return "", CacheKeyInputs{}, err
	}

	envMode := in.TaskDefinition.EnvMode
	if envMode == "" {
		envMode = "infer"
	}
	hashedEnv := resolveHashedEnv(in.TaskDefinition.Env, in.EnvVars, envMode)

	upstream := append([]string{}, in.UpstreamHashes...)
	sort.Strings(upstream)

	keyInputs := CacheKeyInputs{
		TaskID:       in.TaskID,
		GlobalHash:   b.globalHash,
		PackageHash:  packageHash,
		Command:      in.Command,
		InputHashes:  inputHashes,
		OutputGlobs:  in.TaskDefinition.Outputs,
		EnvMode:      envMode,
		HashedEnv:    hashedEnv,
		UpstreamKeys: upstream,
	}

	digest, err := CanonicalHash(keyInputs)
	if err != nil {
		return "", CacheKeyInputs{}, err
	}
	return digest, keyInputs, nil
}

// resolveHashedEnv applies EnvMode to decide which of the full environment
// participates in the key: loose hashes everything the caller captured,
// strict/infer resolve only the declared wildcard patterns (e.g.
// "NEXT_PUBLIC_*") against the captured environment. Either way, values are
// run through ToSecretHashable so a run summary or cache-key dump never
// leaks a literal secret value, only its digest.
func resolveHashedEnv(declared []string, full map[string]string, mode string) env.EnvironmentVariablePairs {
	evm := env.EnvironmentVariableMap(full)
	if mode == "loose" {
		return evm.ToSecretHashable()
	}
	matched, err := evm.FromWildcards(declared)
	if err != nil {
		// An invalid pattern can't match anything; fall back to the
		// declared names taken literally so the key still depends on them.
		matched = env.EnvironmentVariableMap{}
		for _, name := range declared {
			matched[name] = full[name]
		}
	}
	return matched.ToSecretHashable()
}
