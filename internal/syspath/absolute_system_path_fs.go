package syspath

import (
	"io/ioutil"
	"os"
	"path/filepath"
)

// UntypedJoin appends raw, unstamped path segments (e.g. "..", "..") to this
// AbsoluteSystemPath. Prefer Join with RelativeSystemPath segments where the
// segments are already typed; UntypedJoin exists for call sites (upward
// traversal, literal filenames) where forcing a typed segment would add
// noise without adding safety.
func (p AbsoluteSystemPath) UntypedJoin(segments ...string) AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Join(append([]string{p.ToString()}, segments...)...))
}

// Dir returns the parent directory of this path.
func (p AbsoluteSystemPath) Dir() AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Dir(p.ToString()))
}

// Base returns the final path element.
func (p AbsoluteSystemPath) Base() string {
	return filepath.Base(p.ToString())
}

// ReadFile reads the contents of the file at this path.
func (p AbsoluteSystemPath) ReadFile() ([]byte, error) {
	return ioutil.ReadFile(p.ToString())
}

// WriteFile writes contents to the file at this path with the given mode.
func (p AbsoluteSystemPath) WriteFile(contents []byte, mode os.FileMode) error {
	return ioutil.WriteFile(p.ToString(), contents, mode)
}

// FileExists reports whether this path exists and is not a directory.
func (p AbsoluteSystemPath) FileExists() bool {
	info, err := os.Lstat(p.ToString())
	return err == nil && !info.IsDir()
}

// DirExists reports whether this path exists and is a directory.
func (p AbsoluteSystemPath) DirExists() bool {
	info, err := os.Lstat(p.ToString())
	return err == nil && info.IsDir()
}

// MkdirAll creates this path and any missing parents.
func (p AbsoluteSystemPath) MkdirAll(mode os.FileMode) error {
	return os.MkdirAll(p.ToString(), mode)
}

// EnsureDir creates the directory containing this path, if missing.
func (p AbsoluteSystemPath) EnsureDir() error {
	return os.MkdirAll(filepath.Dir(p.ToString()), 0775)
}

// Remove removes the file or empty directory at this path.
func (p AbsoluteSystemPath) Remove() error {
	return os.Remove(p.ToString())
}

// RemoveAll removes this path and any children.
func (p AbsoluteSystemPath) RemoveAll() error {
	return os.RemoveAll(p.ToString())
}

// Rename renames (or moves) this path to dest, by way of os.Rename - the
// caller is responsible for ensuring both paths are on the same filesystem
// when an atomic rename is required.
func (p AbsoluteSystemPath) Rename(dest AbsoluteSystemPath) error {
	return os.Rename(p.ToString(), dest.ToString())
}

// Lstat implements os.Lstat for this path.
func (p AbsoluteSystemPath) Lstat() (os.FileInfo, error) {
	return os.Lstat(p.ToString())
}

// Symlink creates a symlink at this path pointing at target.
func (p AbsoluteSystemPath) Symlink(target string) error {
	return os.Symlink(target, p.ToString())
}

// Findup walks upward from this directory looking for a file or directory
// named `name`, returning the matching AbsoluteSystemPath once found.
func (p AbsoluteSystemPath) Findup(name string) (AbsoluteSystemPath, error) {
	found, err := FindupFrom(name, p.ToString())
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", os.ErrNotExist
	}
	return AbsoluteSystemPath(found), nil
}
