package internal

import (
	"strconv"
	"strings"
	"sync/atomic"
)

var (
	quietMode   atomic.Bool // Suppresses informational output.
	debugMode   atomic.Bool // Enables debug logging and streams tool output.
	verboseMode atomic.Bool // Adds source locations to log records.
)

// Seeds the runtime modes from linker flags.
func init() {
	seedModes(rawQuiet, rawDebug, rawVerbose)
}

// Sets each mode from its raw flag value. Unparseable values leave the mode
// unchanged.
func seedModes(quiet, debug, verbose string) {
	if v, err := strconv.ParseBool(quiet); err == nil {
		quietMode.Store(v)
	}
	if v, err := strconv.ParseBool(debug); err == nil {
		debugMode.Store(v)
	}
	if v, err := strconv.ParseBool(verbose); err == nil {
		verboseMode.Store(v)
	}
}

// Enables or disables quiet mode.
func SetQuiet(enabled bool) { quietMode.Store(enabled) }

// Returns true if quiet mode is enabled.
func IsQuiet() bool { return quietMode.Load() }

// Enables or disables debug mode.
func SetDebug(enabled bool) { debugMode.Store(enabled) }

// Returns true if debug mode is enabled.
func IsDebug() bool { return debugMode.Load() }

// Enables or disables verbose logging.
func SetVerbose(enabled bool) { verboseMode.Store(enabled) }

// Returns true if verbose logging is enabled.
func IsVerbose() bool { return verboseMode.Load() }

// Returns the archive compression used when none is given on the command line.
func DefaultCompression() string {
	if c := strings.TrimSpace(rawCompression); c != "" {
		return strings.ToLower(c)
	}
	return "gzip"
}
