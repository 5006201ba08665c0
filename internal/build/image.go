package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cruciblehq/acipack/internal/archive"
	"github.com/cruciblehq/acipack/internal/manifest"
)

// Unpacks a base image archive into the root filesystem.
//
// A URL is downloaded through the cache first. When a digest is given the
// archive is verified before anything is unpacked.
func imageStep(ctx context.Context, s *Session, p *manifest.ImageParams) error {
	path := p.Path
	if p.URL != "" {
		var err error
		if path, err = s.fetcher.Fetch(ctx, p.URL); err != nil {
			return err
		}
	} else if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if p.Digest != "" {
		if err := archive.Verify(path, p.Digest); err != nil {
			return err
		}
	}

	slog.Info("unpacking image", "path", path)
	return archive.UnpackFile(path, s.Rootfs)
}
