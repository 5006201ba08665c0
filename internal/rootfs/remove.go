package rootfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/mountinfo"
)

// Removes path and everything below it.
//
// Fails with [ErrLiveMounts] if anything is mounted at or below path, so a
// leftover bind of the host /dev or /sys is never deleted through.
func RemoveAll(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	mounts, err := mountinfo.GetMounts(mountinfo.PrefixFilter(abs))
	if err != nil {
		return fmt.Errorf("%w: reading mount table: %w", ErrFileSystemOperation, err)
	}
	if len(mounts) > 0 {
		return fmt.Errorf("%w: %s (%s)", ErrLiveMounts, abs, mounts[0].Mountpoint)
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}
