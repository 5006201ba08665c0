package runtime

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/containerd/continuity/fs"
	"github.com/containerd/errdefs"
)

// Search path used to find programs named without a directory inside a root
// filesystem.
var chrootPath = []string{"/usr/local/sbin", "/usr/local/bin", "/usr/sbin", "/usr/bin", "/sbin", "/bin"}

// Returns a command running "/bin/sh -c script" on the host with env added.
// Keys are added in sorted order.
func Shell(script string, env map[string]string) Command {
	vars := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		vars = append(vars, k+"="+env[k])
	}
	return Command{
		Args: []string{"/bin/sh", "-c", script},
		Env:  vars,
	}
}

// Returns a command running path with args chrooted into root.
func Chroot(root, path string, args ...string) Command {
	return Command{
		Args: append([]string{path}, args...),
		Root: root,
		Dir:  "/",
	}
}

// Returns the absolute path inside root of the program name, searching the
// standard directories when name has no slash. Symlinks are followed within
// root. A name with a slash is returned unchanged. A name found in none of
// the directories is reported as [errdefs.ErrNotFound].
func LookPathIn(root, name string) (string, error) {
	if name == "" {
		return "", ErrEmptyCommand
	}
	if strings.Contains(name, "/") {
		return name, nil
	}
	for _, dir := range chrootPath {
		candidate := filepath.Join(dir, name)
		resolved, err := fs.RootPath(root, candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(resolved)
		if err == nil && info.Mode().IsRegular() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found in %s", errdefs.ErrNotFound, name, strings.Join(chrootPath, ":"))
}
