package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Kind of build step.
type StepKind int

const (
	StepImage       StepKind = iota // Fetches or opens an archive and extracts it into the root filesystem.
	StepSetupChroot                 // Prepares the root filesystem for command execution.
	StepAnsible                     // Runs a provisioning playbook against the root filesystem.
	StepCmd                         // Runs a command inside the root filesystem.
	StepShell                       // Runs a host shell command with ROOTFS exported.
	StepCopy                        // Copies host files and library closures into the root filesystem.
	StepSymlink                     // Creates symlinks inside the root filesystem.
	StepWrite                       // Writes a text file inside the root filesystem.
	StepDelete                      // Removes files and directories inside the root filesystem.
	StepMkdir                       // Creates directories inside the root filesystem.
	StepExtract                     // Reduces the root filesystem to binaries, their libraries, and keeps.

	numStepKinds
)

var stepNames = [numStepKinds]string{
	StepImage:       "image",
	StepSetupChroot: "setup_chroot",
	StepAnsible:     "ansible",
	StepCmd:         "cmd",
	StepShell:       "shell",
	StepCopy:        "copy",
	StepSymlink:     "symlink",
	StepWrite:       "write",
	StepDelete:      "delete",
	StepMkdir:       "mkdir",
	StepExtract:     "extract",
}

// Alternative spellings accepted in manifests.
var stepAliases = map[string]StepKind{
	"setup-chroot": StepSetupChroot,
	"provision":    StepAnsible,
}

// Returns every step kind in declaration order.
func StepKinds() []StepKind {
	kinds := make([]StepKind, numStepKinds)
	for i := range kinds {
		kinds[i] = StepKind(i)
	}
	return kinds
}

// Returns the canonical manifest name of the step kind.
func (k StepKind) String() string {
	if k < 0 || k >= numStepKinds {
		return "StepKind(" + strconv.Itoa(int(k)) + ")"
	}
	return stepNames[k]
}

// Parses a step name, accepting aliases.
func ParseStepKind(name string) (StepKind, error) {
	for k, n := range stepNames {
		if n == name {
			return StepKind(k), nil
		}
	}
	if k, ok := stepAliases[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

// Single build step.
//
// Params holds a pointer to the parameter type matching Kind, for example
// *WriteParams for [StepWrite].
type Step struct {
	Kind   StepKind // Step kind.
	Name   string   // Optional display name.
	Params any      // Kind-specific parameters.
}

// Returns the display name, falling back to the kind.
func (s Step) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind.String()
}

// Parameters of an image step.
type ImageParams struct {
	URL    string        `json:"url"`    // Archive URL, cached locally.
	Path   string        `json:"path"`   // Local archive path.
	Digest digest.Digest `json:"digest"` // Optional expected archive digest.
}

// Parameters of a setup_chroot step.
type SetupChrootParams struct {
	CopyResolvConf     bool `json:"copy_resolvconf"`       // Copy the host /etc/resolv.conf.
	CopyHosts          bool `json:"copy_hosts"`            // Copy the host /etc/hosts.
	MountProc          bool `json:"mount_proc"`            // Mount proc on /proc.
	MountDev           bool `json:"mount_dev"`             // Bind the host /dev.
	MountSys           bool `json:"mount_sys"`             // Bind the host /sys.
	MakeDebianPolicyRC bool `json:"make_debian_policy_rc"` // Install a policy-rc.d that denies service starts.
}

// Parameters of an ansible step.
type AnsibleParams struct {
	Playbook string `json:"playbook"` // Playbook path on the host.
}

// Parameters of a cmd step.
type CmdParams struct {
	Path string   `json:"path"` // Command path inside the root filesystem.
	Args []string `json:"args"` // Command arguments.
	Copy bool     `json:"copy"` // Copy the host file at Path into the root filesystem before running.
}

// Parameters of a shell step.
type ShellParams struct {
	Cmd string            `json:"cmd"` // Shell command line.
	Env map[string]string `json:"env"` // Additional environment variables.
}

// Parameters of a copy step.
type CopyParams struct {
	Binaries       []string   `json:"binaries"`        // Host executables copied with their library closure.
	FindExecutable []string   `json:"find_executable"` // Host directories searched for executables.
	Files          []FileCopy `json:"files"`           // Explicit source/destination pairs.
	Excludes       []string   `json:"excludes"`        // Host path prefixes never copied.
}

// Parameters of a symlink step.
type SymlinkParams struct {
	Links []Link `json:"links"` // Links to create.
}

// Parameters of a write step.
type WriteParams struct {
	Path     string `json:"path"`     // File path inside the root filesystem.
	Contents string `json:"contents"` // File contents.
	Mode     string `json:"mode"`     // Optional octal permission bits.
}

// Returns the permission bits for the written file, 0644 by default.
func (p *WriteParams) FileMode() os.FileMode {
	if p.Mode == "" {
		return 0o644
	}
	mode, _ := strconv.ParseUint(p.Mode, 8, 32)
	return os.FileMode(mode) & os.ModePerm
}

// Parameters of a delete step.
type DeleteParams struct {
	Files []string `json:"files"` // Paths inside the root filesystem.
}

// Parameters of a mkdir step.
type MkdirParams struct {
	Dirs StringList `json:"dirs"` // Directories inside the root filesystem.
}

// Parameters of an extract step.
type ExtractParams struct {
	Binaries []string `json:"binaries"` // Executables inside the root filesystem to keep with their libraries.
	Keeps    []string `json:"keeps"`    // Additional paths inside the root filesystem to keep.
}

// Host file copied into the root filesystem, written as [src, dst].
type FileCopy struct {
	Source string // Host path.
	Dest   string // Path inside the root filesystem.
}

func (f *FileCopy) UnmarshalJSON(data []byte) error {
	var err error
	f.Source, f.Dest, err = decodePair(data)
	return err
}

// Symlink to create, written as [target, linkname].
type Link struct {
	Target string // Link target, stored verbatim.
	Name   string // Link path inside the root filesystem.
}

func (l *Link) UnmarshalJSON(data []byte) error {
	var err error
	l.Target, l.Name, err = decodePair(data)
	return err
}

// Decodes a two-element string list.
func decodePair(data []byte) (string, string, error) {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return "", "", err
	}
	if len(pair) != 2 || pair[0] == "" || pair[1] == "" {
		return "", "", fmt.Errorf("expected a pair of non-empty strings, got %s", data)
	}
	return pair[0], pair[1], nil
}

// List of strings that may also be written as a single string.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings, got %s", data)
	}
	*s = many
	return nil
}

// Discriminator and display name shared by all steps.
type stepHeader struct {
	Step string `json:"step"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Decodes a single step object.
//
// The kind is read from "step", or from the legacy "type" key. Unknown keys
// are ignored. Required fields are checked for presence, not content, so an
// empty "contents" is a valid write step.
func DecodeStep(data []byte) (Step, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Step{}, fmt.Errorf("%w: step must be an object", ErrInvalidStep)
	}

	var header stepHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return Step{}, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}

	name := header.Step
	if name == "" {
		name = header.Type
	}
	if name == "" {
		return Step{}, fmt.Errorf("%w: %q", ErrMissingField, "step")
	}

	kind, err := ParseStepKind(strings.TrimSpace(name))
	if err != nil {
		return Step{}, err
	}

	params, required := newParams(kind)
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			return Step{}, fmt.Errorf("%w: %s step requires %q", ErrMissingField, kind, key)
		}
	}

	if err := json.Unmarshal(data, params); err != nil {
		return Step{}, fmt.Errorf("%w: %s: %w", ErrInvalidStep, kind, err)
	}
	if err := validate(params); err != nil {
		return Step{}, fmt.Errorf("%w: %s: %w", ErrInvalidStep, kind, err)
	}

	return Step{Kind: kind, Name: header.Name, Params: params}, nil
}

// Returns zero parameters with defaults applied, and the keys that must be
// present for the kind.
func newParams(kind StepKind) (any, []string) {
	switch kind {
	case StepImage:
		return &ImageParams{}, nil
	case StepSetupChroot:
		return &SetupChrootParams{
			CopyResolvConf: true,
			CopyHosts:      true,
			MountProc:      true,
			MountDev:       true,
			MountSys:       true,
		}, nil
	case StepAnsible:
		return &AnsibleParams{}, []string{"playbook"}
	case StepCmd:
		return &CmdParams{}, []string{"path"}
	case StepShell:
		return &ShellParams{}, []string{"cmd"}
	case StepCopy:
		return &CopyParams{}, nil
	case StepSymlink:
		return &SymlinkParams{}, nil
	case StepWrite:
		return &WriteParams{}, []string{"path", "contents"}
	case StepDelete:
		return &DeleteParams{}, []string{"files"}
	case StepMkdir:
		return &MkdirParams{}, []string{"dirs"}
	case StepExtract:
		return &ExtractParams{}, nil
	}
	panic("manifest: unhandled step kind " + kind.String())
}

// Checks constraints that decoding alone does not enforce.
func validate(params any) error {
	switch p := params.(type) {
	case *ImageParams:
		if (p.URL == "") == (p.Path == "") {
			return fmt.Errorf("%w: exactly one of %q or %q is required", ErrMissingField, "url", "path")
		}
		if p.Digest != "" {
			if err := p.Digest.Validate(); err != nil {
				return err
			}
		}
	case *AnsibleParams:
		if p.Playbook == "" {
			return fmt.Errorf("%w: %q is empty", ErrMissingField, "playbook")
		}
	case *CmdParams:
		if p.Path == "" {
			return fmt.Errorf("%w: %q is empty", ErrMissingField, "path")
		}
	case *ShellParams:
		if p.Cmd == "" {
			return fmt.Errorf("%w: %q is empty", ErrMissingField, "cmd")
		}
	case *WriteParams:
		if p.Path == "" {
			return fmt.Errorf("%w: %q is empty", ErrMissingField, "path")
		}
		if p.Mode != "" {
			if _, err := strconv.ParseUint(p.Mode, 8, 32); err != nil {
				return fmt.Errorf("mode %q is not an octal number", p.Mode)
			}
		}
	}
	return nil
}
