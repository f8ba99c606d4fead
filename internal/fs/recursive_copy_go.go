//go:build go || !rust

package fs

import (
	"os"

	"github.com/sailbuild/sail/internal/syspath"
)

// RecursiveCopy copies the file or directory tree rooted at from to to,
// preserving relative structure and file modes. Directories are created
// with mode 0755 rather than their source mode.
func RecursiveCopy(from syspath.AbsoluteSystemPath, to syspath.AbsoluteSystemPath) error {
	info, err := from.Lstat()
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return CopyFile(&LstatCachedFile{Path: from}, to)
	}

	return WalkMode(from.ToString(), func(name string, isDir bool, mode os.FileMode) error {
		rel, err := syspath.AbsoluteSystemPathFromUpstream(name).RelativeTo(from)
		if err != nil {
			return err
		}
		dest := rel.RestoreAnchor(to)

		if isDir {
			return dest.MkdirAll(0o755)
		}

		return CopyFile(&LstatCachedFile{Path: syspath.AbsoluteSystemPathFromUpstream(name)}, dest)
	})
}
