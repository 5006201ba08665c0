package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/cruciblehq/acipack/internal/ldd"
	"github.com/cruciblehq/acipack/internal/manifest"
	"github.com/cruciblehq/acipack/internal/rootfs"
	"github.com/cruciblehq/acipack/internal/sets"
	"github.com/samber/lo"
)

// Copies host files into the root filesystem.
//
// Binaries, and executables found below the find_executable directories, are
// copied to the same path inside the root together with their library
// closure. When any library was needed, the glibc name service and resolver
// libraries are added too. Symlinks among them bring every hop of their chain.
// Explicit file pairs are copied as given. Nothing below an excluded prefix is
// copied.
func copyStep(ctx context.Context, s *Session, p *manifest.CopyParams) error {
	exclude := rootfs.ExcludePrefixes(p.Excludes)

	executables := slices.Clone(p.Binaries)
	for _, dir := range lo.Uniq(p.FindExecutable) {
		found, err := findExecutables(dir, exclude)
		if err != nil {
			return err
		}
		executables = append(executables, found...)
	}

	closure, err := s.closure(ctx, executables)
	if err != nil {
		return err
	}

	copies := slices.Clone(p.Files)
	copies = append(copies, lo.Map(sets.Sorted(closure), func(path string, _ int) manifest.FileCopy {
		return manifest.FileCopy{Source: path, Dest: path}
	})...)
	copies = lo.Filter(copies, func(c manifest.FileCopy, _ int) bool {
		return !exclude(c.Source)
	})

	for _, c := range copies {
		dst, err := rootfs.ResolveParent(s.Rootfs, c.Dest)
		if err != nil {
			return err
		}
		slog.Debug("copy", "src", c.Source, "dest", c.Dest)
		if err := rootfs.CopyInto(c.Source, dst, exclude); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCopy, c.Source, err)
		}
	}
	return nil
}

// Returns the host executables with their libraries and the symlink chains of
// all of them.
func (s *Session) closure(ctx context.Context, executables []string) (sets.Set[string], error) {
	files := sets.New(executables...)

	libs := sets.New[string]()
	for _, exe := range executables {
		libs.AddSet(s.libraries(ctx, exe, true))
	}
	if libs.Len() > 0 {
		files.AddSet(libs)
		glibc, err := s.resolver.GlibcLibraries(ctx)
		if err != nil {
			slog.Warn("glibc libraries not found", "error", err)
		}
		files.Add(glibc...)
	}

	for _, path := range sets.Sorted(files) {
		hops, err := ldd.Chain("/", path)
		if err != nil {
			return nil, err
		}
		files.Add(hops...)
	}
	return files, nil
}

// Returns the executable regular files below dir, skipping excluded entries.
func findExecutables(dir string, exclude rootfs.ExcludeFunc) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if exclude(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&0o111 != 0 {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCopy, dir, err)
	}
	return found, nil
}
