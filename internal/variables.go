package internal

import (
	"fmt"
	"runtime"
	"strings"
)

// Name of the tool, used for logging groups and kong help.
const Name = "acipack"

const (

	// String reported for any build variable that was not set.
	undefined = "(undefined)"

	// Version string reported by builds made outside the release pipeline.
	localBuild = "(local)"

	// Branch whose name is omitted from version strings.
	releaseBranch = "main"
)

// Set via -ldflags "-X github.com/cruciblehq/acipack/internal.<name>=<value>".
var (
	version   = "" // Release version, with or without a leading "v".
	stage     = "" // Git branch the release was cut from.
	gitCommit = "" // Commit hash of the release.

	rawQuiet       = "false" // Default for quiet mode.
	rawDebug       = "false" // Default for debug mode.
	rawVerbose     = "false" // Default for verbose mode.
	rawCompression = "gzip"  // Default archive compression.
)

// Returns the release version without any "v" prefix, or "(undefined)".
func Version() string {
	v := strings.ToLower(strings.TrimSpace(version))
	if v == "" {
		return undefined
	}
	return strings.TrimPrefix(v, "v")
}

// Returns the lower-cased release stage, or "(undefined)".
func Stage() string {
	if s := strings.TrimSpace(stage); s != "" {
		return strings.ToLower(s)
	}
	return undefined
}

// Returns the release commit hash, or "(undefined)".
func GitCommit() string {
	if c := strings.TrimSpace(gitCommit); c != "" {
		return c
	}
	return undefined
}

// Reports whether any of the release variables is missing.
func IsLocal() bool {
	for _, v := range []string{version, stage, gitCommit} {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// Returns "<version>[+<stage>] <commit> [<arch>]" for release builds and
// "(local)" otherwise. The stage suffix is omitted on the release branch.
func VersionString() string {
	if IsLocal() {
		return localBuild
	}

	suffix := ""
	if s := Stage(); s != releaseBranch {
		suffix = "+" + s
	}

	return fmt.Sprintf("%s%s %s [%s]", Version(), suffix, GitCommit(), runtime.GOARCH)
}
