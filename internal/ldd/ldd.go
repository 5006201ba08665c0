package ldd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/cruciblehq/acipack/internal/sets"
)

const (

	// Virtual library provided by the kernel, never present on disk.
	vdso = "linux-vdso.so.1"

	defaultLdd      = "ldd"
	defaultLdconfig = "/sbin/ldconfig"
)

// Library name prefixes glibc loads at runtime through NSS and the resolver,
// which never appear in ldd output.
var glibcRuntimeLibraries = []string{
	"libnss_compat.so",
	"libnss_dns.so",
	"libnss_files.so",
	"libresolv.so",
}

// Outcome of a single resolution.
type Outcome int

const (
	Dynamic     Outcome = iota // ldd listed the executable's libraries.
	NotDynamic                 // The executable is not dynamically linked.
	ToolMissing                // ldd could not be started.
	ToolFailed                 // ldd ran and reported an error.
)

func (o Outcome) String() string {
	switch o {
	case Dynamic:
		return "dynamic"
	case NotDynamic:
		return "not dynamic"
	case ToolMissing:
		return "tool missing"
	case ToolFailed:
		return "tool failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Libraries of one executable.
type Result struct {
	Outcome   Outcome          // What happened.
	Libraries sets.Set[string] // Library paths or basenames; empty unless Outcome is Dynamic.
	Err       error            // Underlying error for ToolMissing and ToolFailed.
}

// Runs a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Runs the host tools.
type Resolver struct {
	run      RunFunc
	ldd      string
	ldconfig string
	exists   func(path string) bool
}

// Creates a resolver that runs ldd and ldconfig on the host.
func New() *Resolver {
	return NewWithRunner(runHost)
}

// Creates a resolver that runs tools through run.
func NewWithRunner(run RunFunc) *Resolver {
	return &Resolver{
		run:      run,
		ldd:      defaultLdd,
		ldconfig: defaultLdconfig,
		exists:   fileExists,
	}
}

func runHost(ctx context.Context, name string, args ...string) ([]byte, error) {
	slog.Debug("exec", "argv", append([]string{name}, args...))
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Resolves the shared libraries of the executable at path.
//
// With abs set, the result holds absolute host paths from "name => /path"
// lines and bare absolute paths such as the dynamic loader. Otherwise it holds
// basenames of every listed library. Tool failures never abort the caller;
// they are reported in the result's Outcome.
func (r *Resolver) Resolve(ctx context.Context, path string, abs bool) Result {
	out, err := r.run(ctx, r.ldd, path)
	if err != nil {
		return classify(out, err)
	}
	if isStatic(string(out)) {
		return Result{Outcome: NotDynamic, Libraries: sets.New[string]()}
	}
	return Result{Outcome: Dynamic, Libraries: Parse(string(out), abs)}
}

// Maps a failed ldd run to an outcome.
func classify(out []byte, err error) Result {
	res := Result{Libraries: sets.New[string](), Err: err}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		res.Outcome = ToolMissing
		res.Err = fmt.Errorf("%w: %w", errdefs.ErrNotFound, err)
	case errors.As(err, &exitErr) && isStatic(string(out)):
		res.Outcome = NotDynamic
		res.Err = nil
	default:
		res.Outcome = ToolFailed
		res.Err = fmt.Errorf("%w: %w: %s", ErrExternalTool, err, strings.TrimSpace(string(out)))
	}
	return res
}

// Reports whether ldd output says the file has no dynamic section.
func isStatic(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "not a dynamic executable") ||
		strings.Contains(lower, "not a valid dynamic program") ||
		strings.Contains(lower, "statically linked")
}

// Parses ldd output.
//
// The vdso entry is skipped. With abs set only resolved absolute paths are
// returned; otherwise library names are returned with any directory
// stripped. Lines in any other shape are ignored.
func Parse(out string, abs bool) sets.Set[string] {
	libs := sets.New[string]()

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		items := strings.Fields(sc.Text())
		if len(items) == 0 || items[0] == vdso {
			continue
		}
		name := items[0]

		if !abs {
			if strings.HasSuffix(name, ":") {
				continue
			}
			libs.Add(filepath.Base(name))
			continue
		}

		switch {
		case len(items) == 4 && items[1] == "=>" && strings.HasPrefix(items[2], "/"):
			libs.Add(items[2])
		case len(items) == 2 && strings.HasPrefix(name, "/"):
			libs.Add(name)
		}
	}
	return libs
}

// Returns the glibc runtime-loaded libraries present on the host.
//
// They are read from the "ldconfig -p" cache listing, skipping 32-bit
// compatibility entries and paths that do not exist.
func (r *Resolver) GlibcLibraries(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, r.ldconfig, "-p")
	if err != nil {
		return nil, fmt.Errorf("%w: %s -p: %w", ErrExternalTool, r.ldconfig, err)
	}

	var libs []string
	for _, lib := range ParseLdconfig(string(out)) {
		if r.exists(lib) {
			libs = append(libs, lib)
		}
	}
	return libs, nil
}

// Parses "ldconfig -p" output into the paths of glibc runtime libraries.
func ParseLdconfig(out string) []string {
	var libs []string

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.Contains(line, "/lib32/") {
			continue
		}
		_, path, ok := strings.Cut(line, "=>")
		if !ok || !isGlibcRuntime(line) {
			continue
		}
		libs = append(libs, strings.TrimSpace(path))
	}
	return libs
}

func isGlibcRuntime(line string) bool {
	for _, prefix := range glibcRuntimeLibraries {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
