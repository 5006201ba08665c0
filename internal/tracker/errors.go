package tracker

import "errors"

var (
	ErrMount   = errors.New("mount failed")
	ErrUnmount = errors.New("unmount failed")
	ErrRestore = errors.New("restore failed")
)
