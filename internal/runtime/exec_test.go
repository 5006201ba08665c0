package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/google/go-cmp/cmp"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []string
		want      []string
	}{
		{
			name:      "override existing key",
			base:      []string{"A=1", "B=2"},
			overrides: []string{"A=override"},
			want:      []string{"A=override", "B=2"},
		},
		{
			name:      "add new key",
			base:      []string{"A=1"},
			overrides: []string{"B=2"},
			want:      []string{"A=1", "B=2"},
		},
		{
			name:      "empty base",
			base:      nil,
			overrides: []string{"A=1"},
			want:      []string{"A=1"},
		},
		{
			name:      "empty overrides",
			base:      []string{"A=1"},
			overrides: nil,
			want:      []string{"A=1"},
		},
		{
			name:      "both empty",
			base:      nil,
			overrides: nil,
			want:      []string{},
		},
		{
			name:      "value with equals sign",
			base:      []string{"CMD=foo=bar"},
			overrides: nil,
			want:      []string{"CMD=foo=bar"},
		},
		{
			name:      "malformed entries skipped",
			base:      []string{"NOEQUALS", "A=1"},
			overrides: []string{"ALSO_BAD", "B=2"},
			want:      []string{"A=1", "B=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeEnv(tt.base, tt.overrides)
			sort.Strings(got)
			sort.Strings(tt.want)

			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d\ngot:  %v\nwant: %v", len(got), len(tt.want), got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExec(t *testing.T) {
	rt := New(false)

	result, err := rt.Exec(context.Background(), Shell(`echo "$GREETING"; echo oops >&2; exit 3`, map[string]string{"GREETING": "hello"}))
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if result.Stderr != "oops\n" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
}

func TestExecDir(t *testing.T) {
	dir := t.TempDir()
	result, err := New(false).Exec(context.Background(), Command{Args: []string{"/bin/sh", "-c", "pwd -P"}, Dir: dir})
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if got := strings.TrimSpace(result.Stdout); got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestExecErrors(t *testing.T) {
	rt := New(false)

	if _, err := rt.Exec(context.Background(), Command{}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("empty command error = %v", err)
	}

	_, err := rt.Exec(context.Background(), Command{Args: []string{"acipack-no-such-tool"}})
	if !errdefs.IsNotFound(err) {
		t.Errorf("missing program error = %v, want not found", err)
	}
}

func TestRun(t *testing.T) {
	rt := New(false)

	if err := rt.Run(context.Background(), "true", Shell("exit 0", nil)); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	err := rt.Run(context.Background(), "provision", Shell("echo broken >&2; exit 2", nil))
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("Run() error = %v, want ErrCommandFailed", err)
	}
	if !strings.Contains(err.Error(), "provision failed with exit code 2 (broken)") {
		t.Errorf("error message = %q", err)
	}
}

func TestShell(t *testing.T) {
	got := Shell("ls $ROOTFS", map[string]string{"ROOTFS": "/tmp/r", "A": "1"})
	want := Command{
		Args: []string{"/bin/sh", "-c", "ls $ROOTFS"},
		Env:  []string{"A=1", "ROOTFS=/tmp/r"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Shell() mismatch (-want +got):\n%s", diff)
	}
}

func TestChroot(t *testing.T) {
	got := Chroot("/tmp/r", "/bin/echo", "a", "b")
	want := Command{Args: []string{"/bin/echo", "a", "b"}, Root: "/tmp/r", Dir: "/"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Chroot() mismatch (-want +got):\n%s", diff)
	}
}

func TestLookPathIn(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"usr/bin", "bin"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "bin/busybox"), nil, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "usr/bin/notes"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// An absolute link that only resolves inside the root.
	if err := os.Symlink("/bin/busybox", filepath.Join(root, "usr/bin/sh")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		want    string
		wantErr error
	}{
		{name: "busybox", want: "/bin/busybox"},
		{name: "sh", want: "/usr/bin/sh"},
		{name: "/opt/app", want: "/opt/app"},
		{name: "notes", wantErr: errdefs.ErrNotFound},
		{name: "missing", wantErr: errdefs.ErrNotFound},
		{name: "", wantErr: ErrEmptyCommand},
	}
	for _, tt := range tests {
		got, err := LookPathIn(root, tt.name)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LookPathIn(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("LookPathIn(%q) error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("LookPathIn(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
