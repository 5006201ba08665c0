package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/containerd/errdefs"
)

// Output of a command execution.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Captured standard error.
}

// Process to run.
type Command struct {
	Args  []string // Program and arguments. Required.
	Env   []string // KEY=VALUE entries merged over the host environment.
	Dir   string   // Working directory; "/" inside Root when Root is set.
	Root  string   // Directory to chroot into before exec. Empty runs on the host.
	Stdin io.Reader
}

// Runs commands on the host.
type Runtime struct {
	stream bool // Copy process output to the terminal.
}

// Creates a runtime. With stream set, process output is also written to the
// terminal as it is produced.
func New(stream bool) *Runtime {
	return &Runtime{stream: stream}
}

// Runs the command and waits for it to exit.
//
// A non-zero exit code is not treated as an error; the caller decides. An
// error is returned only when the process cannot be started or waited for.
// A program that cannot be found is reported as [errdefs.ErrNotFound].
func (r *Runtime) Exec(ctx context.Context, c Command) (*ExecResult, error) {
	if len(c.Args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if c.Root != "" {
		if err := chroot(cmd, c.Root); err != nil {
			return nil, err
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if r.stream {
		cmd.Stdout = io.MultiWriter(&stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	}

	slog.Debug("exec", "argv", c.Args, "root", c.Root, "dir", c.Dir)

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrNotFound, c.Args[0], err)
		default:
			return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, c.Args[0], err)
		}
	}

	return &ExecResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Runs the command, returning an error that includes desc if the process
// exits with a non-zero code.
func (r *Runtime) Run(ctx context.Context, desc string, c Command) error {
	result, err := r.Exec(ctx, c)
	if err != nil {
		return fmt.Errorf("%s: %w", desc, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %s failed with exit code %d (%s)", ErrCommandFailed, desc, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// Merges override env vars on top of a base env slice.
func mergeEnv(base, overrides []string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, entry := range base {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}
	for _, entry := range overrides {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}

	result := make([]string, 0, len(merged))
	for k, v := range merged {
		result = append(result, k+"="+v)
	}
	return result
}
