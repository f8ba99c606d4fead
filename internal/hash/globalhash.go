package hash

import (
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/sailbuild/sail/internal/fs/globby"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
)

// _globalCacheKey changes whenever the shape of a cache entry's inputs
// changes incompatibly, invalidating every existing entry at once.
const _globalCacheKey = "sail-cache-v1"

// GlobalHashable is every input that affects ALL tasks regardless of
// package: the globalDependencies globs, the declared globalEnv vars, and
// the engine's own cache-key format version.
type GlobalHashable struct {
	GlobalCacheKey       string            `json:"globalCacheKey"`
	GlobalFileHashMap    map[string]string `json:"globalFileHashMap"`
	HashedSortedEnvPairs []string          `json:"hashedSortedEnvPairs"`
}

// CalculateGlobalHash hashes everything in cfg that applies to every task:
// globalDependencies file contents and globalEnv var values. The returned
// map is every matched global-dependency file's own hash, repo-relative,
// for inclusion in a run summary.
func CalculateGlobalHash(rootPath syspath.AbsoluteSystemPath, cfg *manifest.BuildConfig, fhc *FileHashCache, logger hclog.Logger) (string, map[string]string, error) {
	globalFileHashMap := map[string]string{}

	if len(cfg.GlobalDependencies) > 0 {
		exclude := []string{"**/node_modules/**", "**/.git/**"}
		matches := globby.GlobFiles(rootPath.ToString(), &cfg.GlobalDependencies, &exclude)
		sort.Strings(matches)

		for _, match := range matches {
			absMatch := syspath.AbsoluteSystemPathFromUpstream(match)
			digest, err := fhc.GetFileHash(absMatch, nil)
			if err != nil {
				return "", nil, fmt.Errorf("hashing global dependency %q: %w", match, err)
			}
			rel, err := absMatch.RelativeTo(rootPath)
			if err != nil {
				return "", nil, err
			}
			globalFileHashMap[rel.ToUnixPath().ToString()] = digest
		}
	}

	envPairs := make([]string, 0, len(cfg.GlobalEnv))
	for _, name := range cfg.GlobalEnv {
		envPairs = append(envPairs, fmt.Sprintf("%s=%s", name, os.Getenv(name)))
	}
	sort.Strings(envPairs)

	hashable := GlobalHashable{
		GlobalCacheKey:       _globalCacheKey,
		GlobalFileHashMap:    globalFileHashMap,
		HashedSortedEnvPairs: envPairs,
	}

	digest, err := CanonicalHash(hashable)
	if err != nil {
		return "", nil, err
	}

	logger.Debug("global hash", "value", digest, "files", len(globalFileHashMap), "env", len(envPairs))
	return digest, globalFileHashMap, nil
}
