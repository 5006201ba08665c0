//go:build linux

package tracker

import (
	"fmt"
	"os"
	"slices"

	"github.com/containerd/containerd/v2/core/mount"
	"github.com/cruciblehq/acipack/internal/paths"
	"github.com/moby/sys/mountinfo"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

// Mounts on the host. Requires CAP_SYS_ADMIN.
type hostMounter struct{}

// Returns a [Mounter] operating on the host mount table.
func HostMounter() Mounter {
	return hostMounter{}
}

func (hostMounter) Mount(m specs.Mount) error {
	if err := os.MkdirAll(m.Destination, paths.DefaultDirMode); err != nil {
		return err
	}

	mnt := mount.Mount{
		Type:    m.Type,
		Source:  m.Source,
		Options: slices.DeleteFunc(slices.Clone(m.Options), func(o string) bool { return o == optRSlave }),
	}
	if err := mnt.Mount(m.Destination); err != nil {
		return err
	}

	if slices.Contains(m.Options, optRSlave) {
		if err := unix.Mount("", m.Destination, "", unix.MS_SLAVE|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("making %s rslave: %w", m.Destination, err)
		}
	}
	return nil
}

// Unmounts target recursively. A target that is no longer a mount point is
// treated as already unmounted.
func (hostMounter) Unmount(target string) error {
	if ok, err := mountinfo.Mounted(target); err == nil && !ok {
		return nil
	}
	return mount.UnmountRecursive(target, 0)
}

func (hostMounter) Detach(target string) error {
	return mount.Unmount(target, unix.MNT_DETACH)
}
