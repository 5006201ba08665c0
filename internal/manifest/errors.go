package manifest

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	ErrInvalidManifest = fmt.Errorf("invalid manifest: %w", errdefs.ErrInvalidArgument)
	ErrMissingSteps    = errors.New("build steps not found")
	ErrInvalidStep     = errors.New("invalid build step")
	ErrUnknownStep     = errors.New("unknown build step")
	ErrMissingField    = errors.New("missing required field")
)
