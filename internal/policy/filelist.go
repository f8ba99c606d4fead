package policy

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/sailbuild/sail/internal/scm"
	"github.com/sailbuild/sail/internal/syspath"
)

// FileLister supplies the file-set a policy run walks. The default source
// is git ls-files; WalkFileLister is the fallback used outside a git
// repository (spec.md §4.7's "file-set source: by default git ls-files,
// overridable").
type FileLister interface {
	ListFiles(root syspath.AbsoluteSystemPath) ([]string, error)
}

// SCMFileLister lists every git-tracked file under root via scm.SCM.
type SCMFileLister struct {
	SCM scm.SCM
}

// ListFiles implements FileLister.
func (l SCMFileLister) ListFiles(root syspath.AbsoluteSystemPath) ([]string, error) {
	return l.SCM.TrackedFiles(root.ToString())
}

var defaultSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// WalkFileLister enumerates files with a plain filesystem walk, for repos
// with no .git directory to ask git about.
type WalkFileLister struct{}

// ListFiles implements FileLister.
func (WalkFileLister) ListFiles(root syspath.AbsoluteSystemPath) ([]string, error) {
	var files []string
	err := godirwalk.Walk(root.ToString(), &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if defaultSkipDirs[de.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(root.ToString(), osPathname)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// normalizeSlashes matches the rest of this package's assumption that
// policy Match patterns and ExcludeFiles globs are written against
// forward-slash, repo-relative paths regardless of OS.
func normalizeSlashes(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = strings.ReplaceAll(f, `\`, "/")
	}
	return out
}
