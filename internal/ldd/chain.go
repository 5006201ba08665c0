package ldd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/continuity/fs"
	"github.com/cruciblehq/acipack/internal/sets"
)

// Linux MAXSYMLINKS.
const maxHops = 40

// Follows the symlink at path one hop at a time and returns every hop that
// exists, in order, excluding path itself.
//
// Link targets are interpreted as they would be inside root: absolute targets
// start at root, relative targets at the link's directory, and ".." stops at
// root. Symlinked directories along a target are followed within root as
// well, so every returned hop is a real path below root. The walk stops at the
// first target that is not a symlink, is missing, or is a directory.
// Revisiting a path, or exceeding 40 hops, returns [ErrSymlinkCycle].
func Chain(root, path string) ([]string, error) {
	root = filepath.Clean(root)
	current := filepath.Clean(path)
	if !within(root, current) {
		return nil, nil
	}
	seen := sets.New(current)

	var hops []string
	for range maxHops {
		info, err := os.Lstat(current)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return hops, nil
		}

		target, err := os.Readlink(current)
		if err != nil {
			return hops, err
		}

		next, err := resolveTarget(root, current, target)
		if err != nil {
			return hops, nil
		}
		if seen.Has(next) {
			return hops, fmt.Errorf("%w: %s", ErrSymlinkCycle, path)
		}
		seen.Add(next)

		info, err = os.Lstat(next)
		if err != nil || info.IsDir() {
			return hops, nil
		}
		hops = append(hops, next)
		current = next
	}
	return hops, fmt.Errorf("%w: %s: more than %d links", ErrSymlinkCycle, path, maxHops)
}

// Returns the host path the link target names, with the parent directory
// resolved inside root and the final element left unresolved.
func resolveTarget(root, link, target string) (string, error) {
	rel, err := filepath.Rel(root, link)
	if err != nil {
		return "", err
	}

	p := target
	if !filepath.IsAbs(target) {
		p = filepath.Join(filepath.Dir(filepath.Join("/", rel)), target)
	}
	p = filepath.Join("/", p)
	if p == "/" {
		return root, nil
	}

	dir, err := fs.RootPath(root, filepath.Dir(p))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(p)), nil
}

// Reports whether path is root or below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
