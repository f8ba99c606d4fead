package hashing

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/sailbuild/sail/internal/fs/globby"
	"github.com/sailbuild/sail/internal/syspath"
)

// getPackageFileHashesFromInputs hashes exactly the files matching the given
// glob patterns (TaskDefinition.Inputs), resolved relative to packagePath.
func getPackageFileHashesFromInputs(rootPath syspath.AbsoluteSystemPath, packagePath syspath.AnchoredSystemPath, inputs []string) (map[syspath.AnchoredUnixPath]string, error) {
	absolutePackagePath := packagePath.RestoreAnchor(rootPath)
	exclude := []string{}
	matches := globby.GlobFiles(absolutePackagePath.ToString(), &inputs, &exclude)

	files := make([]syspath.AnchoredSystemPath, 0, len(matches))
	for _, match := range matches {
		rel, err := filepath.Rel(rootPath.ToString(), match)
		if err != nil {
			return nil, err
		}
		files = append(files, syspath.AnchoredSystemPath(rel))
	}

	return GetHashesForFiles(rootPath, files)
}

// getPackageFileHashesFromProcessingGitIgnore is the last-resort fallback
// when git itself is unavailable: walk packagePath on disk, skip anything
// matching the repository root's .gitignore (nested .gitignore files are
// not read), keep only files matching inputs when inputs are provided,
// and hash what's left.
func getPackageFileHashesFromProcessingGitIgnore(rootPath syspath.AbsoluteSystemPath, packagePath syspath.AnchoredSystemPath, inputs []string) (map[syspath.AnchoredUnixPath]string, error) {
	absolutePackagePath := packagePath.RestoreAnchor(rootPath)

	var ignoreLines []string
	if raw, err := os.ReadFile(rootPath.UntypedJoin(".gitignore").ToString()); err == nil {
		ignoreLines = append(ignoreLines, splitNonEmptyLines(string(raw))...)
	}
	matcher := gitignore.CompileIgnoreLines(ignoreLines...)

	var files []syspath.AnchoredSystemPath
	err := filepath.Walk(absolutePackagePath.ToString(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(rootPath.ToString(), path)
		if relErr != nil {
			return relErr
		}
		if info.IsDir() {
			if matcher.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.MatchesPath(rel) {
			return nil
		}
		files = append(files, syspath.AnchoredSystemPath(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(inputs) > 0 {
		exclude := []string{}
		matchSet := make(map[string]bool)
		for _, m := range globby.GlobFiles(absolutePackagePath.ToString(), &inputs, &exclude) {
			matchSet[m] = true
		}
		filtered := files[:0]
		for _, f := range files {
			if matchSet[f.RestoreAnchor(rootPath).ToString()] {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	return GetHashesForFiles(rootPath, files)
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
