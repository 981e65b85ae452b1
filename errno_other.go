//go:build !(linux || darwin || freebsd)

package mmalloc

import "syscall"

const (
	errInval = syscall.EINVAL
	errNoMem = syscall.ENOMEM
)
