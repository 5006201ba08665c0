package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/acipack/internal"
	"github.com/cruciblehq/acipack/internal/archive"
	"github.com/cruciblehq/acipack/internal/build"
	"github.com/cruciblehq/acipack/internal/runtime"
)

// Represents the 'acipack build' command.
type BuildCmd struct {
	Compression string `short:"C" default:"${compression}" help:"Output compression: ${compressions}." placeholder:"ALGO"`
	KeepWorkdir bool   `help:"Leave the work directory in place after the build."`
	CacheDir    string `type:"path" help:"Directory for downloaded base images." placeholder:"DIR"`
	TempDir     string `type:"path" help:"Parent directory of the work directory." placeholder:"DIR"`
	Manifest    string `arg:"" type:"path" help:"Build manifest."`
	Output      string `arg:"" type:"path" help:"Archive to write."`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	compression, err := archive.ParseCompression(c.Compression)
	if err != nil {
		return err
	}

	result, err := build.Run(ctx, build.Options{
		Manifest:    c.Manifest,
		Output:      c.Output,
		Compression: compression,
		CacheDir:    c.CacheDir,
		TempDir:     c.TempDir,
		KeepWorkdir: c.KeepWorkdir,
		Runtime:     runtime.New(internal.IsDebug()),
	})
	if err != nil {
		return err
	}

	if !internal.IsQuiet() {
		fmt.Println(result.Digest)
	}
	return nil
}
