package build

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cruciblehq/acipack/internal/manifest"
)

// Executes one step against the session.
type handler func(ctx context.Context, s *Session, step manifest.Step) error

// Handler for every step kind.
var handlers = map[manifest.StepKind]handler{
	manifest.StepImage:       typed(imageStep),
	manifest.StepSetupChroot: typed(setupChrootStep),
	manifest.StepAnsible:     typed(ansibleStep),
	manifest.StepCmd:         typed(cmdStep),
	manifest.StepShell:       typed(shellStep),
	manifest.StepCopy:        typed(copyStep),
	manifest.StepSymlink:     typed(symlinkStep),
	manifest.StepWrite:       typed(writeStep),
	manifest.StepDelete:      typed(deleteStep),
	manifest.StepMkdir:       typed(mkdirStep),
	manifest.StepExtract:     typed(extractStep),
}

// Adapts a handler taking typed parameters.
func typed[P any](fn func(context.Context, *Session, *P) error) handler {
	return func(ctx context.Context, s *Session, step manifest.Step) error {
		params, ok := step.Params.(*P)
		if !ok {
			return fmt.Errorf("%w: %s step has %T parameters", errdefs.ErrInvalidArgument, step.Kind, step.Params)
		}
		return fn(ctx, s, params)
	}
}

// Dispatches a step to the handler for its kind.
func executeStep(ctx context.Context, s *Session, step manifest.Step) error {
	h, ok := handlers[step.Kind]
	if !ok {
		return fmt.Errorf("%w: %w: %s", errdefs.ErrInvalidArgument, manifest.ErrUnknownStep, step.Kind)
	}
	return h(ctx, s, step)
}
