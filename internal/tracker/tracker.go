package tracker

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/cruciblehq/acipack/internal/sets"
	"github.com/hashicorp/go-multierror"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Performs host mounts and unmounts.
type Mounter interface {

	// Mounts m on m.Destination, creating the mount point if needed.
	Mount(m specs.Mount) error

	// Unmounts target and everything mounted below it.
	Unmount(target string) error

	// Lazily detaches target, used when Unmount fails.
	Detach(target string) error
}

// Side-effect ledger of a single build.
//
// A Tracker is not safe for concurrent use; builds are sequential.
type Tracker struct {
	mounter Mounter
	mounts  []string          // Active mount points, in mount order.
	mounted sets.Set[string]  // Index over mounts.
	order   []string          // Revert paths, in registration order.
	reverts map[string]string // Path to backup path; empty means remove on revert.
}

// Creates an empty tracker that unmounts through m.
func New(m Mounter) *Tracker {
	return &Tracker{
		mounter: m,
		mounted: sets.New[string](),
		reverts: make(map[string]string),
	}
}

// Mounts m and records its destination.
//
// A destination that is already recorded is not mounted again.
func (t *Tracker) Mount(m specs.Mount) error {
	if t.mounted.Has(m.Destination) {
		return nil
	}
	slog.Debug("mount", "type", m.Type, "source", m.Source, "target", m.Destination, "options", m.Options)
	if err := t.mounter.Mount(m); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMount, m.Destination, err)
	}
	t.RecordMount(m.Destination)
	return nil
}

// Adds path to the active mount set. Idempotent.
func (t *Tracker) RecordMount(path string) {
	if t.mounted.Has(path) {
		return
	}
	t.mounted.Add(path)
	t.mounts = append(t.mounts, path)
}

// Registers path to be restored from backup on cleanup.
//
// If path is already registered the earlier backup stays authoritative and
// backup, which then holds content written by this build, is removed.
func (t *Tracker) RecordReplace(path, backup string) {
	if _, ok := t.reverts[path]; ok {
		removeFile(backup)
		return
	}
	t.add(path, backup)
}

// Registers path to be deleted on cleanup, as it did not exist before.
//
// Does nothing if path is already registered.
func (t *Tracker) RecordRemove(path string) {
	if _, ok := t.reverts[path]; ok {
		return
	}
	t.add(path, "")
}

// Registers path to be deleted on cleanup, discarding any backup recorded
// for it earlier.
func (t *Tracker) ForceRemove(path string) {
	if backup, ok := t.reverts[path]; ok {
		removeFile(backup)
		t.reverts[path] = ""
		return
	}
	t.add(path, "")
}

func (t *Tracker) add(path, backup string) {
	t.reverts[path] = backup
	t.order = append(t.order, path)
}

// Returns the recorded mount points in mount order.
func (t *Tracker) Mounts() []string {
	return slices.Clone(t.mounts)
}

// Returns the backup recorded for path, and whether path is registered. An
// empty backup means path is removed on cleanup.
func (t *Tracker) Backup(path string) (string, bool) {
	b, ok := t.reverts[path]
	return b, ok
}

// Reports whether nothing is recorded.
func (t *Tracker) Empty() bool {
	return len(t.mounts) == 0 && len(t.reverts) == 0
}

// Reverts all recorded side effects.
//
// Mounts are released in reverse order: an ordinary unmount first, then a
// lazy detach. Mounts that survive both are logged and forgotten. Then every
// registered path is removed and, if it has a backup, the backup is renamed
// back into place, newest registration first. Restore failures are logged
// and returned together. The tracker is empty afterwards, so a second call
// does nothing.
func (t *Tracker) Cleanup() error {
	for _, path := range slices.Backward(t.mounts) {
		t.unmount(path)
	}
	t.mounts = nil
	t.mounted = sets.New[string]()

	var result *multierror.Error
	for _, path := range slices.Backward(t.order) {
		if err := restore(path, t.reverts[path]); err != nil {
			slog.Warn("restore failed", "path", path, "error", err)
			result = multierror.Append(result, err)
		}
	}
	t.order = nil
	t.reverts = make(map[string]string)

	return result.ErrorOrNil()
}

// Unmounts path, falling back to a lazy detach.
func (t *Tracker) unmount(path string) {
	err := t.mounter.Unmount(path)
	if err == nil {
		slog.Debug("unmounted", "path", path)
		return
	}
	slog.Debug("unmount failed, detaching", "path", path, "error", err)

	if derr := t.mounter.Detach(path); derr != nil {
		slog.Warn("unmount failed", "path", path, "error", fmt.Errorf("%w: %w", ErrUnmount, derr))
	}
}

// Removes the current content at path and moves backup into its place.
func restore(path, backup string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %w", ErrRestore, path, err)
	}
	if backup == "" {
		return nil
	}
	if err := os.Rename(backup, path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRestore, path, err)
	}
	slog.Debug("restored", "path", path, "backup", backup)
	return nil
}

// Removes path if it is a regular file.
func removeFile(path string) {
	if path == "" {
		return
	}
	if info, err := os.Lstat(path); err == nil && info.Mode().IsRegular() {
		if err := os.Remove(path); err != nil {
			slog.Warn("removing stale backup", "path", path, "error", err)
		}
	}
}
