//go:build unix

package runtime

import (
	"os/exec"
	"syscall"
)

// Configures cmd to chroot into root before exec.
func chroot(cmd *exec.Cmd, root string) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Chroot = root
	return nil
}
