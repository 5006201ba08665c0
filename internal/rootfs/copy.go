package rootfs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/containerd/continuity/fs"
	"github.com/cruciblehq/acipack/internal/paths"
)

// Reports whether a host path is excluded from copying.
type ExcludeFunc func(path string) bool

// Returns an [ExcludeFunc] matching paths that start with any of prefixes.
//
// Matching is on the raw string, so "/usr/share/doc" also excludes
// "/usr/share/docs".
func ExcludePrefixes(prefixes []string) ExcludeFunc {
	return func(path string) bool {
		return slices.ContainsFunc(prefixes, func(prefix string) bool {
			return prefix != "" && strings.HasPrefix(path, prefix)
		})
	}
}

// Copies the host file or directory src to the host path dst.
//
// Directories are copied recursively, merging into an existing destination.
// Existing files are replaced. Symlinks are copied as symlinks. Permission
// bits and timestamps are preserved; ownership is not. Missing parents of
// dst are created. Entries matched by exclude are skipped, along with
// everything below an excluded directory. A nil exclude copies everything.
func CopyInto(src, dst string, exclude ExcludeFunc) error {
	if exclude == nil {
		exclude = func(string) bool { return false }
	}

	if exclude(src) {
		return nil
	}
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if !info.IsDir() {
		return copyEntry(src, dst, info)
	}
	return copyTree(src, dst, exclude)
}

// Copies a directory tree. Metadata of newly created directories is applied
// after the walk so that writing children does not disturb it.
func copyTree(src, dst string, exclude ExcludeFunc) error {
	type dirInfo struct {
		path string
		info os.FileInfo
	}
	var dirs []dirInfo

	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != src && exclude(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			created, err := mkdirReplacing(target)
			if err != nil {
				return err
			}
			if created {
				dirs = append(dirs, dirInfo{target, info})
			}
			return nil
		}
		return copyEntry(path, target, info)
	})
	if err != nil {
		return fmt.Errorf("%w: copying %s: %w", ErrFileSystemOperation, src, err)
	}

	for _, d := range slices.Backward(dirs) {
		if err := copyMetadata(d.path, d.info); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	return nil
}

// Creates a directory at path, replacing a non-directory already there.
// Reports whether a directory was created.
func mkdirReplacing(path string) (bool, error) {
	info, err := os.Lstat(path)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil:
		if err := os.Remove(path); err != nil {
			return false, err
		}
	case !os.IsNotExist(err):
		return false, err
	}
	return true, os.Mkdir(path, 0o700)
}

// Copies a single non-directory entry, replacing the destination.
func copyEntry(src, dst string, info os.FileInfo) error {
	if existing, err := os.Lstat(dst); err == nil {
		if existing.IsDir() {
			return fmt.Errorf("%w: %s: destination is a directory", ErrFileSystemOperation, dst)
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}

	switch mode := info.Mode(); {
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		if err := os.Symlink(target, dst); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	case mode.IsRegular():
		if err := fs.CopyFile(dst, src); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	default:
		return fmt.Errorf("%w: %s: unsupported file type %s", ErrFileSystemOperation, src, mode.Type())
	}

	if err := copyMetadata(dst, info); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}
