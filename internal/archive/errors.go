package archive

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	ErrUnsupportedCompression = fmt.Errorf("unsupported compression: %w", errdefs.ErrInvalidArgument)
	ErrUnsafeEntry            = errors.New("archive entry escapes root")
	ErrFetch                  = errors.New("fetch failed")
	ErrDigestMismatch         = errors.New("digest mismatch")
	ErrArchive                = errors.New("archive operation failed")
)
