package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "acipack"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Permission mode for executables written into the root filesystem.
	DefaultExecMode os.FileMode = 0755
)

// Path to the directory holding downloaded base image archives.
//
//	Linux:   $XDG_CACHE_HOME/acipack/images or ~/.cache/acipack/images
//	macOS:   ~/Library/Caches/acipack/images
func ImageCache() string {
	return filepath.Join(xdg.CacheHome, appName, "images")
}

// Path to the cached copy of a downloaded archive with the given file name.
func CachedImage(dir, name string) string {
	if dir == "" {
		dir = ImageCache()
	}
	return filepath.Join(dir, filepath.Base(name))
}
