//go:build !linux

package tracker

import (
	"fmt"

	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

type hostMounter struct{}

// Returns a [Mounter] that refuses every operation; mounting is Linux only.
func HostMounter() Mounter {
	return hostMounter{}
}

func (hostMounter) Mount(m specs.Mount) error {
	return fmt.Errorf("mounting %s: %w", m.Destination, errdefs.ErrNotImplemented)
}

func (hostMounter) Unmount(target string) error {
	return fmt.Errorf("unmounting %s: %w", target, errdefs.ErrNotImplemented)
}

func (hostMounter) Detach(target string) error {
	return fmt.Errorf("detaching %s: %w", target, errdefs.ErrNotImplemented)
}
