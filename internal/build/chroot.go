package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/acipack/internal/manifest"
	"github.com/cruciblehq/acipack/internal/paths"
	"github.com/cruciblehq/acipack/internal/rootfs"
	"github.com/cruciblehq/acipack/internal/runtime"
	"github.com/cruciblehq/acipack/internal/tracker"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const (

	// Debian hook that denies service starts from package scripts.
	policyRCPath = "/usr/sbin/policy-rc.d"

	policyRCContents = "#!/bin/sh\nexit 101\n"

	// Inventory template for running a playbook against the root filesystem.
	inventoryFormat = "[aci]\n%s  ansible_connection=chroot\n"
)

// Host files copied into the root filesystem by setup_chroot.
var (
	hostResolvConf = "/etc/resolv.conf"
	hostHosts      = "/etc/hosts"
)

// Prepares the root filesystem for running commands in it.
//
// Host name resolution files are copied in, /proc is mounted, and the host
// /dev and /sys are bound. Everything is recorded for revert.
func setupChrootStep(_ context.Context, s *Session, p *manifest.SetupChrootParams) error {
	if p.CopyResolvConf {
		if err := s.installHostFile(hostResolvConf); err != nil {
			return err
		}
	}
	if p.CopyHosts {
		if err := s.installHostFile(hostHosts); err != nil {
			return err
		}
	}

	mounts := []struct {
		enabled bool
		path    string
		mount   func(target string) specs.Mount
	}{
		{p.MountProc, "/proc", tracker.ProcMount},
		{p.MountDev, "/dev", func(target string) specs.Mount { return tracker.BindMount("/dev", target) }},
		{p.MountSys, "/sys", func(target string) specs.Mount { return tracker.BindMount("/sys", target) }},
	}
	for _, m := range mounts {
		if !m.enabled {
			continue
		}
		target, err := rootfs.Resolve(s.Rootfs, m.path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(target, paths.DefaultDirMode); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		if err := s.tracker.Mount(m.mount(target)); err != nil {
			return err
		}
	}

	if p.MakeDebianPolicyRC {
		return s.install(policyRCPath, func(path string) error {
			if err := os.WriteFile(path, []byte(policyRCContents), paths.DefaultExecMode); err != nil {
				return err
			}
			return os.Chmod(path, paths.DefaultExecMode)
		})
	}
	return nil
}

// Copies the host file at path to the same path in the root filesystem,
// following host symlinks so the copy is a regular file.
func (s *Session) installHostFile(path string) error {
	src, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return s.install(path, func(dst string) error {
		return rootfs.CopyInto(src, dst, nil)
	})
}

// Runs a command chrooted into the root filesystem.
//
// With copy set, the host file at the command path is first copied into the
// root under a temporary name, run from there, and removed afterwards.
// Otherwise a name without a slash must be found in the root's standard
// program directories; the host PATH is never consulted.
func cmdStep(ctx context.Context, s *Session, p *manifest.CmdParams) error {
	var path string
	if p.Copy {
		tmp, err := copyExecutable(p.Path, s.Rootfs)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		path = "/" + filepath.Base(tmp)
	} else {
		var err error
		if path, err = runtime.LookPathIn(s.Rootfs, p.Path); err != nil {
			return err
		}
	}

	return s.rt.Run(ctx, "cmd "+p.Path, runtime.Chroot(s.Rootfs, path, p.Args...))
}

// Copies the host file src into a new executable temporary file in dir and
// returns its host path.
func copyExecutable(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCopy, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, ".acipack-cmd-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCopy, err)
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(out.Name(), paths.DefaultExecMode)
	}
	if err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("%w: %w", ErrCopy, err)
	}
	return out.Name(), nil
}

// Runs a shell command on the host with ROOTFS set to the root filesystem.
func shellStep(ctx context.Context, s *Session, p *manifest.ShellParams) error {
	env := make(map[string]string, len(p.Env)+1)
	for k, v := range p.Env {
		env[k] = v
	}
	env["ROOTFS"] = s.Rootfs

	return s.rt.Run(ctx, "shell", runtime.Shell(p.Cmd, env))
}

// Runs an ansible playbook against the root filesystem through the chroot
// connection plugin.
func ansibleStep(ctx context.Context, s *Session, p *manifest.AnsibleParams) error {
	inv, err := os.CreateTemp("", "acipack-inventory-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	s.tracker.RecordRemove(inv.Name())

	_, err = fmt.Fprintf(inv, inventoryFormat, s.Rootfs)
	if cerr := inv.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	slog.Debug("inventory", "path", inv.Name(), "playbook", p.Playbook)
	return s.rt.Run(ctx, "ansible-playbook", runtime.Command{
		Args: []string{"ansible-playbook", "-i", inv.Name(), p.Playbook},
	})
}
