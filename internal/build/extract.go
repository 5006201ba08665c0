package build

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cruciblehq/acipack/internal/ldd"
	"github.com/cruciblehq/acipack/internal/manifest"
	"github.com/cruciblehq/acipack/internal/rootfs"
	"github.com/cruciblehq/acipack/internal/sets"
	"github.com/samber/lo"
)

// Reduces the root filesystem to the given binaries, their libraries and the
// explicitly kept paths.
//
// Tracked side effects are reverted first, since the tree is about to be
// moved. Libraries are matched by basename anywhere in the tree.
func extractStep(ctx context.Context, s *Session, p *manifest.ExtractParams) error {
	if err := s.tracker.Cleanup(); err != nil {
		return fmt.Errorf("%w: %w", ErrCleanup, err)
	}

	match := sets.New[string]()
	var keeps []string
	for _, bin := range p.Binaries {
		path, err := rootfs.ResolveParent(s.Rootfs, bin)
		if err != nil {
			return err
		}
		match.AddSet(s.libraries(ctx, path, false))

		hops, err := ldd.Chain(s.Rootfs, path)
		if err != nil {
			return err
		}
		keeps = append(keeps, path)
		keeps = append(keeps, hops...)
	}
	for _, keep := range p.Keeps {
		path, err := rootfs.ResolveParent(s.Rootfs, keep)
		if err != nil {
			return err
		}
		keeps = append(keeps, path)
	}

	slog.Debug("extract", "keeps", len(keeps), "libraries", match.Len())
	return rootfs.Extract(s.Rootfs, lo.Uniq(keeps), match)
}
