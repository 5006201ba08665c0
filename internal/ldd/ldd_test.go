package ldd

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/cruciblehq/acipack/internal/sets"
	"github.com/google/go-cmp/cmp"
)

const glibcOutput = `	linux-vdso.so.1 (0x00007ffd4b5f2000)
	libselinux.so.1 => /lib/x86_64-linux-gnu/libselinux.so.1 (0x00007f1a2c1e0000)
	libc.so.6 => /lib/x86_64-linux-gnu/libc.so.6 (0x00007f1a2bfb8000)
	libmissing.so.3 => not found
	/lib64/ld-linux-x86-64.so.2 (0x00007f1a2c25a000)
`

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		abs  bool
		want []string
	}{
		{
			name: "absolute paths",
			abs:  true,
			want: []string{
				"/lib/x86_64-linux-gnu/libc.so.6",
				"/lib/x86_64-linux-gnu/libselinux.so.1",
				"/lib64/ld-linux-x86-64.so.2",
			},
		},
		{
			name: "basenames",
			abs:  false,
			want: []string{
				"ld-linux-x86-64.so.2",
				"libc.so.6",
				"libmissing.so.3",
				"libselinux.so.1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sets.Sorted(Parse(glibcOutput, tt.abs))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Returns a RunFunc replying with fixed output and error.
func fakeRun(out string, err error) RunFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func exitError(t *testing.T) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit 1").Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Skipf("cannot produce exit error: %v", err)
	}
	return err
}

func TestResolveOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		err     func(t *testing.T) error
		want    Outcome
		wantErr bool
		libs    int
	}{
		{name: "dynamic", out: glibcOutput, want: Dynamic, libs: 3},
		{name: "static", out: "\tnot a dynamic executable\n", err: exitError, want: NotDynamic},
		{name: "static exit zero", out: "\tstatically linked\n", want: NotDynamic},
		{name: "missing tool", err: func(*testing.T) error { return exec.ErrNotFound }, want: ToolMissing, wantErr: true},
		{name: "tool error", out: "ldd: ./x: No such file or directory\n", err: exitError, want: ToolFailed, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.err != nil {
				err = tt.err(t)
			}
			r := NewWithRunner(fakeRun(tt.out, err))

			res := r.Resolve(context.Background(), "/bin/x", true)
			if res.Outcome != tt.want {
				t.Fatalf("Outcome = %v, want %v", res.Outcome, tt.want)
			}
			if (res.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", res.Err, tt.wantErr)
			}
			if res.Libraries.Len() != tt.libs {
				t.Errorf("got %d libraries, want %d", res.Libraries.Len(), tt.libs)
			}
		})
	}
}

func TestResolveToolMissingIsNotFound(t *testing.T) {
	r := NewWithRunner(fakeRun("", exec.ErrNotFound))
	res := r.Resolve(context.Background(), "/bin/x", false)
	if !errdefs.IsNotFound(res.Err) {
		t.Errorf("Err = %v, want not found", res.Err)
	}
}

const ldconfigOutput = `1234 libs found in cache ` + "`/etc/ld.so.cache'" + `
	libnss_files.so.2 (libc6,x86-64, OS ABI: Linux 3.2.0) => /lib/x86_64-linux-gnu/libnss_files.so.2
	libnss_dns.so.2 (libc6,x86-64, OS ABI: Linux 3.2.0) => /lib/x86_64-linux-gnu/libnss_dns.so.2
	libnss_dns.so.2 (libc6, OS ABI: Linux 3.2.0) => /lib32/libnss_dns.so.2
	libresolv.so.2 (libc6,x86-64, OS ABI: Linux 3.2.0) => /lib/x86_64-linux-gnu/libresolv.so.2
	libresolv.so (libc6,x86-64) => /usr/lib/x86_64-linux-gnu/libresolv.so
	libssl.so.3 (libc6,x86-64) => /lib/x86_64-linux-gnu/libssl.so.3
`

func TestParseLdconfig(t *testing.T) {
	want := []string{
		"/lib/x86_64-linux-gnu/libnss_files.so.2",
		"/lib/x86_64-linux-gnu/libnss_dns.so.2",
		"/lib/x86_64-linux-gnu/libresolv.so.2",
		"/usr/lib/x86_64-linux-gnu/libresolv.so",
	}
	if diff := cmp.Diff(want, ParseLdconfig(ldconfigOutput)); diff != "" {
		t.Errorf("ParseLdconfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestGlibcLibraries(t *testing.T) {
	r := NewWithRunner(fakeRun(ldconfigOutput, nil))
	r.exists = func(path string) bool { return path != "/usr/lib/x86_64-linux-gnu/libresolv.so" }

	got, err := r.GlibcLibraries(context.Background())
	if err != nil {
		t.Fatalf("GlibcLibraries() error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %v, want 3 libraries", got)
	}

	r = NewWithRunner(fakeRun("", exec.ErrNotFound))
	if _, err := r.GlibcLibraries(context.Background()); !errors.Is(err, ErrExternalTool) {
		t.Errorf("GlibcLibraries() error = %v, want ErrExternalTool", err)
	}
}
