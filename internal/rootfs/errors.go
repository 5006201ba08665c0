package rootfs

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrLiveMounts          = fmt.Errorf("tree has live mounts: %w", errdefs.ErrFailedPrecondition)
)
