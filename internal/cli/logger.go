package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/cruciblehq/acipack/internal"
	"github.com/mattn/go-isatty"
)

// Creates a logger writing to w at the level given by the current modes.
//
// Terminals get text records. Anything else gets one JSON object per line.
// Verbose mode adds source locations.
func NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     Level(),
		AddSource: internal.IsVerbose(),
	}

	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler.WithGroup(internal.Name))
}

// Returns the log level for the current modes.
func Level() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
