package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/containerd/platforms"
	"github.com/cruciblehq/acipack/internal/archive"
	"github.com/cruciblehq/acipack/internal/ldd"
	"github.com/cruciblehq/acipack/internal/manifest"
	"github.com/cruciblehq/acipack/internal/paths"
	"github.com/cruciblehq/acipack/internal/rootfs"
	"github.com/cruciblehq/acipack/internal/runtime"
	"github.com/cruciblehq/acipack/internal/tracker"
	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Prefix of scratch work directory names.
const workdirPrefix = "acipack-"

// Controls a build.
type Options struct {
	Manifest    string              // Path to the build manifest.
	Output      string              // Path of the archive to write.
	Compression archive.Compression // Compression of the output archive.
	CacheDir    string              // Directory for downloaded images. Defaults to the XDG cache.
	TempDir     string              // Parent of the work directory. Defaults to the system temp dir.
	KeepWorkdir bool                // Leave the work directory in place for inspection.
	Platform    ocispec.Platform    // Platform for the default labels. Defaults to the host.
	Mounter     tracker.Mounter     // Host mount operations. Defaults to the host mounter.
	Runtime     *runtime.Runtime    // External command execution. Defaults to a quiet runtime.
	Resolver    *ldd.Resolver       // Shared library resolution. Defaults to the host tools.
}

// Returned after a successful build.
type Result struct {
	Output string        // Path of the written archive.
	Digest digest.Digest // Digest of the archive file.
	Size   int64         // Size of the archive file in bytes.
	Steps  int           // Number of steps run.
}

// Builds an image archive from a manifest.
//
// The manifest is loaded and merged with the default manifest before anything
// on disk changes. Steps then run against a fresh root filesystem in a scratch
// work directory. The merged manifest and the archive are only written when
// every step and the cleanup succeeded. The work directory is removed
// afterwards unless [Options.KeepWorkdir] is set.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts = withDefaults(opts)

	doc, err := manifest.Load(opts.Manifest)
	if err != nil {
		return nil, err
	}
	merged, err := manifest.Merge(manifest.Defaults(opts.Platform), doc.Manifest)
	if err != nil {
		return nil, err
	}
	data, err := merged.Marshal()
	if err != nil {
		return nil, err
	}

	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	workdir, err := os.MkdirTemp(opts.TempDir, workdirPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	defer func() {
		if opts.KeepWorkdir {
			slog.Info("keeping work directory", "path", workdir)
			return
		}
		if err := rootfs.RemoveAll(workdir); err != nil {
			slog.Warn("failed to remove work directory", "path", workdir, "error", err)
		}
	}()

	slog.Info("building image",
		"manifest", opts.Manifest,
		"output", output,
		"steps", len(doc.Steps),
		"workdir", workdir,
	)

	s, err := newSession(workdir, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Execute(ctx, doc.Steps); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if err := os.WriteFile(filepath.Join(workdir, "manifest"), data, paths.DefaultFileMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	dgst, size, err := archive.WriteFile(output, workdir, opts.Compression)
	if err != nil {
		return nil, err
	}

	slog.Info("image written",
		"output", output,
		"digest", dgst.String(),
		"size", humanize.Bytes(uint64(size)),
	)

	return &Result{
		Output: output,
		Digest: dgst,
		Size:   size,
		Steps:  len(doc.Steps),
	}, nil
}

// Fills in the unset options.
func withDefaults(opts Options) Options {
	if opts.Platform.OS == "" || opts.Platform.Architecture == "" {
		opts.Platform = platforms.DefaultSpec()
	}
	if opts.Mounter == nil {
		opts.Mounter = tracker.HostMounter()
	}
	if opts.Runtime == nil {
		opts.Runtime = runtime.New(false)
	}
	if opts.Resolver == nil {
		opts.Resolver = ldd.New()
	}
	return opts
}
