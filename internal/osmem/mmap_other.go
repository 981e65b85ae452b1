//go:build !(linux || darwin || freebsd)

package osmem

import (
	"os"
	"unsafe"
)

// PageSize returns the OS page size.
func PageSize() int {
	return os.Getpagesize()
}

// Map is not available on this platform.
func Map(size uintptr, exec bool) (unsafe.Pointer, error) {
	return nil, ErrUnsupported
}

// Unmap is not available on this platform.
func Unmap(p unsafe.Pointer, size uintptr) error {
	return ErrUnsupported
}
