//go:build !unix

package runtime

import (
	"fmt"
	"os/exec"

	"github.com/containerd/errdefs"
)

func chroot(cmd *exec.Cmd, root string) error {
	return fmt.Errorf("chroot into %s: %w", root, errdefs.ErrNotImplemented)
}
