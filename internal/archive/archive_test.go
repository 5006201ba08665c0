package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/containerd/errdefs"
)

type entry struct {
	name     string
	typeflag byte
	body     string
	link     string
	mode     int64
}

func buildTar(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		mode := e.mode
		if mode == 0 {
			mode = 0o644
		}
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.link,
			Mode:     mode,
			Size:     int64(len(e.body)),
			ModTime:  time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		if e.typeflag != tar.TypeReg {
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Size > 0 {
			if _, err := io.WriteString(tw, e.body); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func compress(t *testing.T, data []byte, c Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := Compress(&buf, c)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseCompression(t *testing.T) {
	for _, name := range CompressionNames() {
		c, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q) error: %v", name, err)
		}
		if c.String() != name {
			t.Errorf("ParseCompression(%q) = %v", name, c)
		}
	}

	_, err := ParseCompression("lz4")
	if !errors.Is(err, ErrUnsupportedCompression) || !errdefs.IsInvalidArgument(err) {
		t.Errorf("ParseCompression(lz4) error = %v", err)
	}
}

func TestDecompressDetects(t *testing.T) {
	payload := bytes.Repeat([]byte("acipack "), 512)

	for _, name := range CompressionNames() {
		t.Run(name, func(t *testing.T) {
			c, _ := ParseCompression(name)
			rc, got, err := Decompress(bytes.NewReader(compress(t, payload, c)))
			if err != nil {
				t.Fatalf("Decompress() error: %v", err)
			}
			defer rc.Close()

			if got != c {
				t.Errorf("detected %v, want %v", got, c)
			}
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, payload) {
				t.Error("payload mismatch")
			}
		})
	}
}

func TestUnpack(t *testing.T) {
	data := buildTar(t, []entry{
		{name: "./", typeflag: tar.TypeDir, mode: 0o755},
		{name: "./usr/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "./usr/bin/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "./usr/bin/tool", typeflag: tar.TypeReg, body: "#!/bin/sh\n", mode: 0o755},
		{name: "./bin", typeflag: tar.TypeSymlink, link: "usr/bin"},
		{name: "./usr/bin/tool2", typeflag: tar.TypeLink, link: "./usr/bin/tool"},
		{name: "/etc/hostname", typeflag: tar.TypeReg, body: "box\n"},
		{name: "./tmp/", typeflag: tar.TypeDir, mode: 0o1777},
	})

	root := t.TempDir()
	if err := Unpack(bytes.NewReader(compress(t, data, Xz)), root); err != nil {
		t.Fatalf("Unpack() error: %v", err)
	}

	info, err := os.Stat(filepath.Join(root, "usr/bin/tool"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("tool mode = %v", info.Mode())
	}
	if want := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC); !info.ModTime().Equal(want) {
		t.Errorf("tool mtime = %v, want %v", info.ModTime(), want)
	}

	if target, err := os.Readlink(filepath.Join(root, "bin")); err != nil || target != "usr/bin" {
		t.Errorf("bin link = %q, %v", target, err)
	}

	linked, err := os.Stat(filepath.Join(root, "usr/bin/tool2"))
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(info, linked) {
		t.Error("hard link not preserved")
	}

	if data, err := os.ReadFile(filepath.Join(root, "etc/hostname")); err != nil || string(data) != "box\n" {
		t.Errorf("etc/hostname = %q, %v", data, err)
	}

	tmp, err := os.Stat(filepath.Join(root, "tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if tmp.Mode()&os.ModeSticky == 0 {
		t.Errorf("tmp mode = %v, want sticky", tmp.Mode())
	}
}

func TestUnpackThroughSymlinkStaysInRoot(t *testing.T) {
	outside := t.TempDir()
	data := buildTar(t, []entry{
		{name: "evil", typeflag: tar.TypeSymlink, link: outside},
		{name: "evil/payload", typeflag: tar.TypeReg, body: "x"},
	})

	root := t.TempDir()
	if err := Unpack(bytes.NewReader(data), root); err != nil {
		t.Fatalf("Unpack() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "payload")); !os.IsNotExist(err) {
		t.Fatalf("entry written outside root: %v", err)
	}
}

func TestUnpackRejectsEscape(t *testing.T) {
	data := buildTar(t, []entry{
		{name: "../escape", typeflag: tar.TypeReg, body: "x"},
	})

	err := Unpack(bytes.NewReader(data), t.TempDir())
	if !errors.Is(err, ErrUnsafeEntry) {
		t.Fatalf("Unpack() error = %v, want ErrUnsafeEntry", err)
	}
}

func makeWorkdir(t *testing.T) string {
	t.Helper()
	workdir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workdir, "manifest"), []byte(`{"acKind":"ImageManifest"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(workdir, "rootfs/a"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workdir, "rootfs/a/f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("a/f", filepath.Join(workdir, "rootfs/link")); err != nil {
		t.Fatal(err)
	}
	if err := os.Link(filepath.Join(workdir, "rootfs/a/f"), filepath.Join(workdir, "rootfs/a/g")); err != nil {
		t.Fatal(err)
	}
	return workdir
}

func TestWrite(t *testing.T) {
	workdir := makeWorkdir(t)

	var buf bytes.Buffer
	if err := Write(&buf, workdir, Gzip); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	rc, c, err := Decompress(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if c != Gzip {
		t.Errorf("compression = %v", c)
	}

	var names []string
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if hdr.Uname != "" || hdr.Gname != "" {
			t.Errorf("%s has owner names %q/%q", hdr.Name, hdr.Uname, hdr.Gname)
		}
		names = append(names, hdr.Name)

		switch hdr.Name {
		case "rootfs/a/f":
			body, _ := io.ReadAll(tr)
			if string(body) != "x" {
				t.Errorf("rootfs/a/f = %q", body)
			}
		case "rootfs/a/g":
			if hdr.Typeflag != tar.TypeLink || hdr.Linkname != "rootfs/a/f" {
				t.Errorf("rootfs/a/g = %c -> %q, want hard link", hdr.Typeflag, hdr.Linkname)
			}
		case "rootfs/link":
			if hdr.Typeflag != tar.TypeSymlink || hdr.Linkname != "a/f" {
				t.Errorf("rootfs/link = %c -> %q", hdr.Typeflag, hdr.Linkname)
			}
		}
	}

	want := []string{"manifest", "rootfs/", "rootfs/a/", "rootfs/a/f", "rootfs/a/g", "rootfs/link"}
	if !slices.Equal(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
}

func TestWriteFile(t *testing.T) {
	workdir := makeWorkdir(t)
	out := filepath.Join(t.TempDir(), "app.aci")

	dgst, size, err := WriteFile(out, workdir, Zstd)
	if err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != size {
		t.Errorf("size = %d, file is %d", size, info.Size())
	}
	if err := Verify(out, dgst); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
}

func TestWriteFileFailureLeavesNothing(t *testing.T) {
	workdir := t.TempDir() // no manifest
	dir := t.TempDir()
	out := filepath.Join(dir, "app.aci")

	if _, _, err := WriteFile(out, workdir, Gzip); err == nil {
		t.Fatal("expected error without a manifest")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output directory not empty: %v", entries)
	}
}

func TestVerifyMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.tar")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Verify(path, "sha256:2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae")
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("Verify() error = %v, want ErrDigestMismatch", err)
	}
}
