package mmalloc

import (
	"errors"
	"syscall"
)

var (
	// ErrInvalidArgument indicates an illegal alignment or size argument.
	ErrInvalidArgument = errors.New("mmalloc: invalid argument")

	// ErrOutOfMemory indicates the OS refused a mapping request.
	ErrOutOfMemory = errors.New("mmalloc: out of memory")

	// ErrBadConfig indicates a Config that New cannot use.
	ErrBadConfig = errors.New("mmalloc: bad config")
)

// Errno maps an error returned by PosixMemalign to the status code the
// POSIX contract specifies: 0, EINVAL or ENOMEM.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidArgument):
		return errInval
	default:
		return errNoMem
	}
}
