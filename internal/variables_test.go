package internal

import (
	"runtime"
	"testing"
)

func setBuildVars(t *testing.T, v, s, c string) {
	t.Helper()
	oldV, oldS, oldC := version, stage, gitCommit
	version, stage, gitCommit = v, s, c
	t.Cleanup(func() { version, stage, gitCommit = oldV, oldS, oldC })
}

func TestVersionString(t *testing.T) {
	tests := []struct {
		name    string
		version string
		stage   string
		commit  string
		want    string
	}{
		{name: "local build", want: "(local)"},
		{name: "missing commit", version: "1.0.0", stage: "main", want: "(local)"},
		{name: "release branch", version: "v1.2.3", stage: "main", commit: "abc123", want: "1.2.3 abc123 [" + runtime.GOARCH + "]"},
		{name: "other stage", version: "1.2.3", stage: "Staging", commit: "abc123", want: "1.2.3+staging abc123 [" + runtime.GOARCH + "]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuildVars(t, tt.version, tt.stage, tt.commit)
			if got := VersionString(); got != tt.want {
				t.Errorf("VersionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUndefinedVariables(t *testing.T) {
	setBuildVars(t, " ", "", "")
	if Version() != undefined || Stage() != undefined || GitCommit() != undefined {
		t.Fatalf("got %q %q %q, want all %q", Version(), Stage(), GitCommit(), undefined)
	}
}

func TestDefaultCompression(t *testing.T) {
	old := rawCompression
	t.Cleanup(func() { rawCompression = old })

	rawCompression = " XZ "
	if got := DefaultCompression(); got != "xz" {
		t.Errorf("DefaultCompression() = %q, want xz", got)
	}
	rawCompression = ""
	if got := DefaultCompression(); got != "gzip" {
		t.Errorf("DefaultCompression() = %q, want gzip", got)
	}
}

func TestSeedModes(t *testing.T) {
	t.Cleanup(func() {
		SetQuiet(false)
		SetDebug(false)
		SetVerbose(false)
	})

	tests := []struct {
		name                  string
		quiet, debug, verbose string
		want                  [3]bool
	}{
		{"all unset", "", "", "", [3]bool{false, false, false}},
		{"quiet and debug", "true", "true", "", [3]bool{true, true, false}},
		{"all set", "1", "true", "TRUE", [3]bool{true, true, true}},
		{"unparseable", "yes", "false", "true", [3]bool{false, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetQuiet(false)
			SetDebug(false)
			SetVerbose(false)

			seedModes(tt.quiet, tt.debug, tt.verbose)

			got := [3]bool{IsQuiet(), IsDebug(), IsVerbose()}
			if got != tt.want {
				t.Errorf("modes (quiet, debug, verbose) = %v, want %v", got, tt.want)
			}
		})
	}
}
