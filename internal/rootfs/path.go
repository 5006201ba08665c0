package rootfs

import (
	"fmt"
	"path/filepath"

	"github.com/containerd/continuity/fs"
)

// Returns the host path of the image path p inside root, following every
// symlink inside root.
func Resolve(root, p string) (string, error) {
	resolved, err := fs.RootPath(root, filepath.Join("/", p))
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %w", ErrFileSystemOperation, p, err)
	}
	return resolved, nil
}

// Returns the host path of the image path p inside root, following symlinks
// in the parent directories but not in the final element.
//
// The root itself resolves to root.
func ResolveParent(root, p string) (string, error) {
	clean := filepath.Join("/", p)
	if clean == "/" {
		return root, nil
	}

	dir, err := Resolve(root, filepath.Dir(clean))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(clean)), nil
}
