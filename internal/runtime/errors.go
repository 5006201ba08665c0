package runtime

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	ErrRuntime       = errors.New("runtime error")
	ErrCommandFailed = fmt.Errorf("command failed: %w", errdefs.ErrUnknown)
	ErrEmptyCommand  = fmt.Errorf("empty command: %w", errdefs.ErrInvalidArgument)
)
