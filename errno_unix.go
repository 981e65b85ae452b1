//go:build linux || darwin || freebsd

package mmalloc

import "golang.org/x/sys/unix"

const (
	errInval = unix.EINVAL
	errNoMem = unix.ENOMEM
)
