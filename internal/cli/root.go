package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/containerd/errdefs"
	"github.com/cruciblehq/acipack/internal"
	"github.com/cruciblehq/acipack/internal/archive"
)

// Represents the root command for acipack.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Suppress informational output."`
	Verbose bool       `short:"v" help:"Enable verbose output."`
	Debug   bool       `short:"d" help:"Enable debug output and show external tool output."`
	Build   BuildCmd   `cmd:"" help:"Build an image archive from a manifest."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Builds App Container images.\n\nRuns the build steps of a manifest against a fresh root filesystem and\npackages the result with the manifest into a single archive."),
		kong.UsageOnError(),
		kong.Vars{
			"version":      internal.VersionString(),
			"compression":  internal.DefaultCompression(),
			"compressions": strings.Join(archive.CompressionNames(), ", "),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	internal.SetDebug(RootCmd.Debug || internal.IsDebug())
	internal.SetQuiet(RootCmd.Quiet || internal.IsQuiet())
	internal.SetVerbose(RootCmd.Verbose || internal.IsVerbose())

	slog.SetDefault(NewLogger(os.Stderr))
}

// Returns the process exit status for an error returned by [Execute].
//
// Invalid arguments, including malformed manifests, exit with 2. Every other
// failure exits with 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errdefs.IsInvalidArgument(err):
		return 2
	}
	return 1
}
