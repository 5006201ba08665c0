// Parses flags, configures logging, and runs acipack subcommands.
//
// The root command accepts the following flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output and show external tool output.
//
// Subcommands:
//
//	build [-C ALGO] [--keep-workdir] [--cache-dir DIR] [--temp-dir DIR] MANIFEST OUTPUT
//	version
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is rebuilt to reflect the final level and verbosity before the
// subcommand runs. SIGINT and SIGTERM cancel the context passed to
// subcommands, so a build in progress stops before its next step and still
// reverts its host changes.
package cli
