// Package tracker records host-visible side effects of a build so they can be
// undone.
//
// Two kinds of side effect are tracked: mounts created under the root
// filesystem (proc, bind mounts of /dev and /sys) and paths that were created
// or replaced (a copied resolv.conf, a generated inventory file). Each replaced
// path remembers the backup holding its original content, or that it did not
// exist before. The first registration for a path wins, so the true original
// survives several steps touching the same file.
//
// [Tracker.Cleanup] unmounts everything (falling back to a lazy detach, and
// only logging when both fail), then restores every path. It leaves the
// tracker empty and is safe to call any number of times.
//
// Example usage:
//
//	t := tracker.New(tracker.HostMounter())
//	defer t.Cleanup()
//
//	if err := t.Mount(tracker.ProcMount(filepath.Join(rootfs, "proc"))); err != nil {
//	    return err
//	}
//	t.RecordRemove(filepath.Join(rootfs, "usr/sbin/policy-rc.d"))
package tracker
