//go:build linux || darwin || freebsd

package osmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PageSize returns the OS page size.
func PageSize() int {
	return unix.Getpagesize()
}

// Map returns size bytes of zeroed anonymous memory.
func Map(size uintptr, exec bool) (unsafe.Pointer, error) {
	if size == 0 || size > maxMapping {
		return nil, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	prot := unix.PROT_READ | unix.PROT_WRITE
	if exec {
		prot |= unix.PROT_EXEC
	}
	data, err := unix.Mmap(-1, 0, int(size), prot, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("osmem: mmap %d bytes: %w", size, err)
	}
	return unsafe.Pointer(unsafe.SliceData(data)), nil
}

// Unmap releases the mapping at p. The slice rebuilt here has the same base
// and capacity as the one Mmap returned, which is what Munmap keys on.
func Unmap(p unsafe.Pointer, size uintptr) error {
	if p == nil || size == 0 {
		return fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	if err := unix.Munmap(unsafe.Slice((*byte)(p), size)); err != nil {
		return fmt.Errorf("osmem: munmap %d bytes: %w", size, err)
	}
	return nil
}
