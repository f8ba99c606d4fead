// Package fs collects small filesystem helpers that operate on syspath's
// typed paths: directory walking, copying, and content hashing shared by
// workspace discovery, the shared cache, and the policy engine.
package fs

import (
	"errors"
	"os"

	"github.com/karrick/godirwalk"

	"github.com/sailbuild/sail/internal/syspath"
)

// GetCwd returns the process's current working directory as an
// AbsoluteSystemPath.
func GetCwd() (syspath.AbsoluteSystemPath, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return syspath.AbsoluteSystemPathFromUpstream(cwd), nil
}

// Walk implements an equivalent to filepath.Walk, built over
// github.com/karrick/godirwalk so symlinked directories are reported but not
// traversed into.
func Walk(rootPath string, callback func(name string, isDir bool) error) error {
	return WalkMode(rootPath, func(name string, isDir bool, mode os.FileMode) error {
		return callback(name, isDir)
	})
}

// WalkMode is like Walk, but the callback also receives the entry's mode
// type bits (the bits of os.FileMode that determine symlink/dir/regular,
// not permissions).
func WalkMode(rootPath string, callback func(name string, isDir bool, mode os.FileMode) error) error {
	return godirwalk.Walk(rootPath, &godirwalk.Options{
		Callback: func(name string, info *godirwalk.Dirent) error {
			isDir, err := info.IsDirOrSymlinkToDir()
			if err != nil {
				pathErr := &os.PathError{}
				if errors.As(err, &pathErr) {
					return godirwalk.SkipThis
				}
				return err
			}
			return callback(name, isDir, info.ModeType())
		},
		ErrorCallback: func(pathname string, err error) godirwalk.ErrorAction {
			pathErr := &os.PathError{}
			if errors.As(err, &pathErr) {
				return godirwalk.SkipNode
			}
			return godirwalk.Halt
		},
		Unsorted:            true,
		AllowNonDirectory:   true,
		FollowSymbolicLinks: false,
	})
}

// SameFile reports whether the two given paths refer to the same physical
// file, using the OS's unique file identifiers (device+inode on Unix).
func SameFile(a string, b string) (bool, error) {
	if a == b {
		return true, nil
	}

	aInfo, err := os.Lstat(a)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	bInfo, err := os.Lstat(b)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return os.SameFile(aInfo, bInfo), nil
}
