package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cruciblehq/acipack/internal/paths"
	"github.com/opencontainers/go-digest"
)

// Entry names written at the top of the output archive, in order.
var topLevel = []string{"manifest", "rootfs"}

// Writes the manifest and rootfs of workdir to output as a compressed tar.
//
// The archive is written to a temporary file in output's directory and
// renamed into place only after it is complete. Returns the digest and size
// of the written file.
func WriteFile(output, workdir string, c Compression) (digest.Digest, int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	digester := digest.Canonical.Digester()
	counter := &countingWriter{w: io.MultiWriter(tmp, digester.Hash())}

	if err := Write(counter, workdir, c); err != nil {
		return "", 0, err
	}
	if err := tmp.Sync(); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if err := os.Chmod(tmp.Name(), paths.DefaultFileMode); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	committed = true

	return digester.Digest(), counter.n, nil
}

// Writes the manifest and rootfs of workdir to w as a compressed tar.
//
// Entries are named relative to workdir and carry numeric ownership only.
// Files sharing an inode are stored once and linked. Sockets are skipped.
func Write(w io.Writer, workdir string, c Compression) error {
	cw, err := Compress(w, c)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(cw)
	aw := archiveWriter{tw: tw, base: workdir, inodes: make(map[inode]string)}
	for _, name := range topLevel {
		if err := filepath.WalkDir(filepath.Join(workdir, name), aw.add); err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	return nil
}

type inode struct {
	dev uint64
	ino uint64
}

type archiveWriter struct {
	tw     *tar.Writer
	base   string
	inodes map[inode]string // First entry name written for each multiply linked inode.
}

// Adds one walked entry to the archive.
func (a *archiveWriter) add(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}

	info, err := d.Info()
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket != 0 {
		slog.Warn("skipping socket", "path", path)
		return nil
	}

	rel, err := filepath.Rel(a.base, path)
	if err != nil {
		return err
	}
	name := filepath.ToSlash(rel)

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uname, hdr.Gname = "", ""
	hdr.Format = tar.FormatPAX

	if st, ok := info.Sys().(*syscall.Stat_t); ok && info.Mode().IsRegular() && st.Nlink > 1 {
		key := inode{dev: uint64(st.Dev), ino: uint64(st.Ino)}
		if first, ok := a.inodes[key]; ok {
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = first
			hdr.Size = 0
		} else {
			a.inodes[key] = name
		}
	}

	if err := a.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if hdr.Typeflag != tar.TypeReg {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(a.tw, f)
	return err
}

// Counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
