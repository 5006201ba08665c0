package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/acipack/internal/archive"
	"github.com/cruciblehq/acipack/internal/ldd"
	"github.com/cruciblehq/acipack/internal/manifest"
	"github.com/cruciblehq/acipack/internal/paths"
	"github.com/cruciblehq/acipack/internal/rootfs"
	"github.com/cruciblehq/acipack/internal/runtime"
	"github.com/cruciblehq/acipack/internal/sets"
	"github.com/cruciblehq/acipack/internal/tracker"
)

// Lifecycle phase of a session.
type Phase int

const (
	Initialized Phase = iota // Work directory created, no step started.
	Running                  // A step is executing.
	Succeeded                // Every step completed.
	Failed                   // A step returned an error.
	CleanedUp                // Tracked side effects have been reverted.
)

func (p Phase) String() string {
	switch p {
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case CleanedUp:
		return "cleaned up"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State of a single build: the root filesystem and everything done to the
// host on its behalf.
type Session struct {
	Workdir string // Scratch directory holding the manifest and rootfs.
	Rootfs  string // Root filesystem under construction.

	tracker  *tracker.Tracker // Host side effects to revert.
	rt       *runtime.Runtime // External command execution.
	resolver *ldd.Resolver    // Shared library resolution.
	fetcher  *archive.Fetcher // Base image downloads.
	backups  int              // Sequence for backup file suffixes.
	phase    Phase            // Current lifecycle phase.
	step     int              // Index of the running or failed step.
}

// Creates a session over an existing work directory, creating the empty
// root filesystem in it.
func newSession(workdir string, opts Options) (*Session, error) {
	root := filepath.Join(workdir, "rootfs")
	if err := os.Mkdir(root, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	return &Session{
		Workdir:  workdir,
		Rootfs:   root,
		tracker:  tracker.New(opts.Mounter),
		rt:       opts.Runtime,
		resolver: opts.Resolver,
		fetcher:  archive.NewFetcher(opts.CacheDir),
	}, nil
}

// Returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	slog.Debug("session", "phase", p.String(), "step", s.step)
	s.phase = p
}

// Runs steps in order, then reverts all tracked side effects.
//
// The first failing step stops the run. Cleanup always happens, and a cleanup
// failure fails an otherwise successful run. A cancelled context stops the run
// before the next step.
func (s *Session) Execute(ctx context.Context, steps []manifest.Step) (err error) {
	defer func() {
		if cerr := s.tracker.Cleanup(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("%w: %w", ErrCleanup, cerr)
			} else {
				slog.Warn("cleanup after failed build", "error", cerr)
			}
		}
		s.setPhase(CleanedUp)
	}()

	for i, step := range steps {
		s.step = i + 1
		s.setPhase(Running)

		if err := ctx.Err(); err != nil {
			s.setPhase(Failed)
			return fmt.Errorf("%w: step %d (%s): %w", ErrStep, s.step, step, err)
		}

		slog.Info("step", "index", s.step, "name", step.String())
		if err := executeStep(ctx, s, step); err != nil {
			s.setPhase(Failed)
			return fmt.Errorf("%w: step %d (%s): %w", ErrStep, s.step, step, err)
		}
	}

	s.setPhase(Succeeded)
	return nil
}

// Returns the next unused backup path for path.
func (s *Session) backupPath(path string) string {
	for {
		candidate := fmt.Sprintf("%s.bk-%d", path, s.backups)
		s.backups++
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Installs a file at the image path p, backing up whatever is there and
// registering the change for revert. write creates the new file at the host
// path it is given.
func (s *Session) install(p string, write func(path string) error) error {
	dst, err := rootfs.ResolveParent(s.Rootfs, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if _, err := os.Lstat(dst); err == nil {
		backup := s.backupPath(dst)
		if err := os.Rename(dst, backup); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		s.tracker.RecordReplace(dst, backup)
	} else {
		s.tracker.RecordRemove(dst)
	}

	if err := write(dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileSystemOperation, p, err)
	}
	return nil
}

// Resolves the libraries of the host executable at path, logging when ldd
// could not say.
func (s *Session) libraries(ctx context.Context, path string, abs bool) sets.Set[string] {
	res := s.resolver.Resolve(ctx, path, abs)
	switch res.Outcome {
	case ldd.Dynamic:
		slog.Debug("resolved libraries", "path", path, "count", res.Libraries.Len())
	case ldd.NotDynamic:
		slog.Debug("not dynamically linked", "path", path)
	default:
		slog.Warn("library resolution failed", "path", path, "outcome", res.Outcome.String(), "error", res.Err)
	}
	return res.Libraries
}
