package fs

import (
	"io"
	"os"

	"github.com/sailbuild/sail/internal/syspath"
)

// CopyFile copies the contents and mode of the file described by from to the
// destination path to. It does not attempt hardlinking; the shared cache
// restores files by plain copy so two different task outputs never alias the
// same inode.
func CopyFile(from *LstatCachedFile, to syspath.AbsoluteSystemPath) error {
	info, err := from.GetInfo()
	if err != nil {
		return err
	}

	if info.IsDir() {
		return to.MkdirAll(info.Mode())
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(from.Path.ToString())
		if err != nil {
			return err
		}
		if err := to.Remove(); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Symlink(target, to.ToString())
	}

	src, err := os.Open(from.Path.ToString())
	if err != nil {
		return err
	}
	defer src.Close()

	if err := to.Dir().MkdirAll(0o755); err != nil {
		return err
	}

	dst, err := os.OpenFile(to.ToString(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	return nil
}
