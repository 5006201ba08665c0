package rootfs

import (
	"os"
	"time"

	"github.com/containerd/continuity/fs"
	"golang.org/x/sys/unix"
)

// Applies the permission bits and timestamps of info to path. Symlinks get
// timestamps only.
func copyMetadata(path string, info os.FileInfo) error {
	atime, err := fs.Atime(info)
	if err != nil {
		atime = info.ModTime()
	}
	mtime := info.ModTime()

	if info.Mode()&os.ModeSymlink != 0 {
		return lutimes(path, atime, mtime)
	}
	if err := os.Chmod(path, info.Mode()&(os.ModePerm|os.ModeSetuid|os.ModeSetgid|os.ModeSticky)); err != nil {
		return err
	}
	return os.Chtimes(path, atime, mtime)
}

// Sets timestamps on path without following a final symlink.
func lutimes(path string, atime, mtime time.Time) error {
	ts := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW)
}

// Sets the access and modification times of path without following a final
// symlink.
func Chtimes(path string, atime, mtime time.Time) error {
	return lutimes(path, atime, mtime)
}
