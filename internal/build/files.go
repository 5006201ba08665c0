package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/acipack/internal/manifest"
	"github.com/cruciblehq/acipack/internal/paths"
	"github.com/cruciblehq/acipack/internal/rootfs"
)

// Creates directories inside the root filesystem. Existing directories are
// left alone.
func mkdirStep(_ context.Context, s *Session, p *manifest.MkdirParams) error {
	for _, dir := range p.Dirs {
		path, err := rootfs.Resolve(s.Rootfs, dir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(path, paths.DefaultDirMode); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	return nil
}

// Writes a file inside the root filesystem, creating parent directories.
// A symlink at the path is followed, staying inside the root.
func writeStep(_ context.Context, s *Session, p *manifest.WriteParams) error {
	path, err := rootfs.Resolve(s.Rootfs, p.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	mode := p.FileMode()
	if err := os.WriteFile(path, []byte(p.Contents), mode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Removes files and directories inside the root filesystem. Symlinks are
// removed, not followed. Missing paths are ignored.
func deleteStep(_ context.Context, s *Session, p *manifest.DeleteParams) error {
	for _, name := range p.Files {
		path, err := rootfs.ResolveParent(s.Rootfs, name)
		if err != nil {
			return err
		}
		if path == s.Rootfs {
			return fmt.Errorf("%w: refusing to delete the root filesystem", ErrFileSystemOperation)
		}

		info, err := os.Lstat(path)
		switch {
		case os.IsNotExist(err):
			slog.Debug("delete: not found", "path", name)
			continue
		case err != nil:
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		case info.IsDir():
			err = rootfs.RemoveAll(path)
		default:
			err = os.Remove(path)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	return nil
}

// Creates symlinks inside the root filesystem, replacing existing files at
// the link path. Targets are stored verbatim.
func symlinkStep(_ context.Context, s *Session, p *manifest.SymlinkParams) error {
	for _, link := range p.Links {
		path, err := rootfs.ResolveParent(s.Rootfs, link.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}

		if info, err := os.Lstat(path); err == nil {
			if info.IsDir() {
				return fmt.Errorf("%w: %s is a directory", ErrFileSystemOperation, link.Name)
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
			}
		}

		if err := os.Symlink(link.Target, path); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	return nil
}
