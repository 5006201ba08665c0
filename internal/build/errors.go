package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrStep                = errors.New("step failed")
	ErrCleanup             = errors.New("cleanup failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrCopy                = errors.New("copy failed")
)
