package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cruciblehq/acipack/internal/paths"
	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
)

// Downloads archives into a cache directory.
type Fetcher struct {
	Client   *http.Client // HTTP client; http.DefaultClient when nil.
	CacheDir string       // Cache directory; the XDG image cache when empty.
}

// Creates a fetcher caching into dir.
func NewFetcher(dir string) *Fetcher {
	return &Fetcher{CacheDir: dir}
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// Returns the local path of the archive at rawURL, downloading it unless a
// cached copy is current.
//
// The cache key is the URL's basename. A cached file is current when a HEAD
// request reports the same Content-Length and a Last-Modified no newer than
// the file's modification time; headers the server does not send are not
// compared.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("%w: %w: invalid URL %q", ErrFetch, errdefs.ErrInvalidArgument, rawURL)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("%w: %w: URL %q has no file name", ErrFetch, errdefs.ErrInvalidArgument, rawURL)
	}

	dst := paths.CachedImage(f.CacheDir, name)
	if info, err := os.Stat(dst); err == nil {
		changed, err := f.changed(ctx, rawURL, info)
		if err != nil {
			return "", err
		}
		if !changed {
			slog.Debug("using cached image", "url", rawURL, "path", dst)
			return dst, nil
		}
	}

	if err := f.download(ctx, rawURL, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Reports whether the remote archive differs from the cached file.
func (f *Fetcher) changed(ctx context.Context, rawURL string, info os.FileInfo) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("%w: HEAD %s: %s", ErrFetch, rawURL, resp.Status)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n != info.Size() {
			return true, nil
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil && info.ModTime().Before(t) {
			return true, nil
		}
	}
	return false, nil
}

// Downloads rawURL to dst through a temporary file in the same directory.
func (f *Fetcher) download(ctx context.Context, rawURL, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w: GET %s: %s", ErrFetch, errdefs.ErrNotFound, rawURL, resp.Status)
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("%w: GET %s: %s", ErrFetch, rawURL, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer os.Remove(tmp.Name())

	start := time.Now()
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			os.Chtimes(tmp.Name(), t, t)
		}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	slog.Info("downloaded image", "url", rawURL, "size", humanize.Bytes(uint64(n)), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Checks that the file at path has digest expected.
func Verify(path string, expected digest.Digest) error {
	if err := expected.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	defer f.Close()

	actual, err := expected.Algorithm().FromReader(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if actual != expected {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrDigestMismatch, path, expected, actual)
	}
	return nil
}
