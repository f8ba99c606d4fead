//go:build go || !rust
// +build go !rust

package fs

import (
	"github.com/adrg/xdg"
	"github.com/sailbuild/sail/internal/syspath"
)

// GetSailDataDir returns a directory outside of the repo
// where sail can store data files such as the shared cache.
func GetSailDataDir() syspath.AbsoluteSystemPath {
	dataHome := syspath.AbsoluteSystemPathFromUpstream(xdg.DataHome)
	return dataHome.UntypedJoin("sail")
}
