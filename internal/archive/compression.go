package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression algorithm of an archive.
type Compression int

const (
	None Compression = iota
	Gzip
	Bzip2
	Xz
	Zstd
)

var compressionNames = map[Compression]string{
	None:  "none",
	Gzip:  "gzip",
	Bzip2: "bzip2",
	Xz:    "xz",
	Zstd:  "zstd",
}

var magics = []struct {
	c     Compression
	magic []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Bzip2, []byte("BZh")},
	{Xz, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
}

// Returns the names accepted by [ParseCompression].
func CompressionNames() []string {
	return []string{"none", "gzip", "bzip2", "xz", "zstd"}
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// Parses a compression name, case-insensitively.
func ParseCompression(name string) (Compression, error) {
	for c, n := range compressionNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnsupportedCompression, name)
}

// Returns the compression whose magic bytes start header, or None.
func Detect(header []byte) Compression {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.magic) {
			return m.c
		}
	}
	return None
}

// Wraps r in a decompressor chosen from the stream's magic bytes.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, None, fmt.Errorf("%w: %w", ErrArchive, err)
	}

	c := Detect(header)
	var rc io.ReadCloser
	switch c {
	case None:
		rc = io.NopCloser(br)
	case Gzip:
		rc, err = gzip.NewReader(br)
	case Bzip2:
		rc, err = bzip2.NewReader(br, nil)
	case Xz:
		var xr *xz.Reader
		xr, err = xz.NewReader(br)
		rc = io.NopCloser(xr)
	case Zstd:
		var zr *zstd.Decoder
		zr, err = zstd.NewReader(br)
		if err == nil {
			rc = zr.IOReadCloser()
		}
	}
	if err != nil {
		return nil, c, fmt.Errorf("%w: opening %s stream: %w", ErrArchive, c, err)
	}
	return rc, c, nil
}

// Wraps w in a compressor for c. Closing the result flushes the compressor
// but does not close w.
func Compress(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Bzip2:
		return bzip2.NewWriter(w, nil)
	case Xz:
		return xz.NewWriter(w)
	case Zstd:
		return zstd.NewWriter(w)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
