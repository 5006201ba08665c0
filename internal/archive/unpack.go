package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cruciblehq/acipack/internal/rootfs"
	"golang.org/x/sys/unix"
)

// Opens the archive at path and unpacks it into root.
func UnpackFile(path, root string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	defer f.Close()

	return Unpack(f, root)
}

// Unpacks a possibly compressed tar stream into root.
//
// Ownership is applied only when running as root. Device nodes that cannot
// be created are skipped with a warning. Directory timestamps are applied
// after all entries are written.
func Unpack(r io.Reader, root string) error {
	rc, c, err := Decompress(r)
	if err != nil {
		return err
	}
	defer rc.Close()

	slog.Debug("unpacking archive", "root", root, "compression", c)

	u := unpacker{root: root, chown: os.Geteuid() == 0}
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
		if err := u.entry(hdr, tr); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrArchive, hdr.Name, err)
		}
	}
	return u.finish()
}

type dirTimes struct {
	path  string
	atime time.Time
	mtime time.Time
}

type unpacker struct {
	root  string
	chown bool
	dirs  []dirTimes
}

// Returns the host path for an entry name, rejecting names that climb out
// of the root. Symlinks already unpacked are resolved inside the root.
func (u *unpacker) target(name string) (string, error) {
	rel := strings.TrimLeft(filepath.Clean(filepath.FromSlash(name)), string(filepath.Separator))
	if rel == "" || rel == "." {
		return u.root, nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeEntry, name)
	}
	return rootfs.ResolveParent(u.root, rel)
}

func (u *unpacker) entry(hdr *tar.Header, r io.Reader) error {
	path, err := u.target(hdr.Name)
	if err != nil {
		return err
	}
	mode := hdr.FileInfo().Mode()

	if hdr.Typeflag != tar.TypeDir {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := removeExisting(path); err != nil {
			return err
		}
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if info, err := os.Lstat(path); err != nil || !info.IsDir() {
			if err := removeExisting(path); err != nil {
				return err
			}
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
		}

	case tar.TypeReg:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		_, err = io.Copy(f, r)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

	case tar.TypeSymlink:
		return u.finishEntry(path, hdr, os.Symlink(hdr.Linkname, path))

	case tar.TypeLink:
		old, err := u.target(hdr.Linkname)
		if err != nil {
			return err
		}
		return os.Link(old, path)

	case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
		if err := mknod(path, hdr); err != nil {
			slog.Warn("skipping special file", "path", hdr.Name, "error", err)
			return nil
		}

	default:
		slog.Debug("skipping archive entry", "path", hdr.Name, "type", string(hdr.Typeflag))
		return nil
	}

	if err := os.Chmod(path, mode&(os.ModePerm|os.ModeSetuid|os.ModeSetgid|os.ModeSticky)); err != nil {
		return err
	}
	return u.finishEntry(path, hdr, nil)
}

// Applies ownership and timestamps once the entry exists.
func (u *unpacker) finishEntry(path string, hdr *tar.Header, err error) error {
	if err != nil {
		return err
	}
	if u.chown {
		if err := os.Lchown(path, hdr.Uid, hdr.Gid); err != nil {
			return err
		}
		// chown clears set-id bits.
		if hdr.Typeflag != tar.TypeSymlink && hdr.Mode&(unix.S_ISUID|unix.S_ISGID) != 0 {
			if err := os.Chmod(path, hdr.FileInfo().Mode()&(os.ModePerm|os.ModeSetuid|os.ModeSetgid|os.ModeSticky)); err != nil {
				return err
			}
		}
	}

	atime := hdr.AccessTime
	if atime.IsZero() {
		atime = hdr.ModTime
	}
	if hdr.Typeflag == tar.TypeDir {
		u.dirs = append(u.dirs, dirTimes{path, atime, hdr.ModTime})
		return nil
	}
	return rootfs.Chtimes(path, atime, hdr.ModTime)
}

// Applies directory timestamps, deepest directories first.
func (u *unpacker) finish() error {
	for _, d := range slices.Backward(u.dirs) {
		if err := rootfs.Chtimes(d.path, d.atime, d.mtime); err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
	}
	return nil
}

// Removes a non-directory at path.
func removeExisting(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	return os.Remove(path)
}

// Creates a device node or FIFO.
func mknod(path string, hdr *tar.Header) error {
	mode := uint32(hdr.Mode & 0o7777)
	switch hdr.Typeflag {
	case tar.TypeChar:
		mode |= unix.S_IFCHR
	case tar.TypeBlock:
		mode |= unix.S_IFBLK
	case tar.TypeFifo:
		mode |= unix.S_IFIFO
	}
	return unix.Mknod(path, mode, int(unix.Mkdev(uint32(hdr.Devmajor), uint32(hdr.Devminor))))
}
