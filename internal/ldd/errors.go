package ldd

import "errors"

var (
	ErrSymlinkCycle = errors.New("symlink cycle")
	ErrExternalTool = errors.New("external tool failed")
)
