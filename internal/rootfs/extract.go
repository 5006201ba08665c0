package rootfs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/cruciblehq/acipack/internal/ldd"
	"github.com/cruciblehq/acipack/internal/sets"
)

// Suffix of the sibling directory the reduced tree is assembled in.
const extractSuffix = ".extract"

// Reduces the tree at root to the kept paths and the files whose basename is
// in match.
//
// keeps are host paths below root; each is moved into the reduced tree with
// its subtree. Then root is walked once: every non-directory whose basename is
// in match is moved, and if it is a symlink, every hop of its chain goes with
// it. Missing parent directories are recreated with the original modes. When
// the walk is done the remains of root are deleted and the reduced tree takes
// its place.
//
// The tree must not have anything mounted below it.
func Extract(root string, keeps []string, match sets.Set[string]) error {
	root = filepath.Clean(root)
	reduced := root + extractSuffix

	if err := RemoveAll(reduced); err != nil {
		return err
	}
	if err := os.Mkdir(reduced, rootMode(root)); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	m := &mover{from: root, resolved: resolved, to: reduced}

	// Shorter paths first, so a keep inside an earlier keep is already moved.
	sorted := slices.Clone(keeps)
	slices.Sort(sorted)
	for _, keep := range sorted {
		if err := m.keep(keep); err != nil {
			return err
		}
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !match.Has(d.Name()) {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			hops, err := ldd.Chain(root, path)
			if err != nil {
				return err
			}
			for _, hop := range hops {
				if err := m.move(hop); err != nil {
					return err
				}
			}
		}
		return m.move(path)
	})
	if err != nil {
		return fmt.Errorf("%w: extracting %s: %w", ErrFileSystemOperation, root, err)
	}

	if err := m.finish(); err != nil {
		return err
	}
	if err := RemoveAll(root); err != nil {
		return err
	}
	if err := os.Rename(reduced, root); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	slog.Debug("extracted root filesystem", "root", root, "keeps", len(keeps), "libraries", match.Len())
	return nil
}

// Returns the permission bits of root, defaulting to 0755.
func rootMode(root string) os.FileMode {
	if info, err := os.Stat(root); err == nil {
		return info.Mode().Perm()
	}
	return 0o755
}

// Moves entries from one tree into the same relative location in another.
type mover struct {
	from     string
	resolved string // from with symlinks resolved.
	to       string
	created  []createdDir // Directories made in the target tree, parents first.
}

type createdDir struct {
	path string
	mode os.FileMode
}

// Moves a kept path. A keep that no longer exists because an enclosing keep
// already took it is fine; any other missing keep is an error.
func (m *mover) keep(path string) error {
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		rel, _ := filepath.Rel(m.from, path)
		if _, err := os.Lstat(filepath.Join(m.to, rel)); err == nil {
			return nil
		}
		return fmt.Errorf("%w: keep %s: %w", ErrFileSystemOperation, rel, err)
	}
	return m.move(path)
}

// Moves path into the other tree, creating parents as needed. A path that is
// already gone, moved as part of an earlier chain, is skipped.
func (m *mover) move(path string) error {
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}

	rel, err := filepath.Rel(m.from, path)
	if err != nil || !filepath.IsLocal(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrFileSystemOperation, path, m.from)
	}

	// The parent must be a real directory of the tree, not reached through a symlink.
	dir, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil || dir != filepath.Join(m.resolved, filepath.Dir(rel)) {
		return fmt.Errorf("%w: %s is outside %s", ErrFileSystemOperation, path, m.from)
	}

	if err := m.mkdirParents(rel); err != nil {
		return err
	}
	if err := os.Rename(path, filepath.Join(m.to, rel)); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Creates the parent directories of rel in the target tree, copying the
// mode of each directory in the source tree.
func (m *mover) mkdirParents(rel string) error {
	dir := filepath.Dir(rel)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(filepath.Join(m.to, dir)); err == nil {
		return nil
	}
	if err := m.mkdirParents(dir); err != nil {
		return err
	}

	mode := os.FileMode(0o755)
	if info, err := os.Stat(filepath.Join(m.from, dir)); err == nil {
		mode = info.Mode() & (os.ModePerm | os.ModeSetgid | os.ModeSticky)
	}

	// Owner write access is needed until the moves are done.
	target := filepath.Join(m.to, dir)
	if err := os.Mkdir(target, 0o700); err != nil && !os.IsExist(err) {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	m.created = append(m.created, createdDir{target, mode})
	return nil
}

// Applies the source modes to the directories created in the target tree,
// deepest first.
func (m *mover) finish() error {
	for _, d := range slices.Backward(m.created) {
		if err := os.Chmod(d.path, d.mode); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	return nil
}
