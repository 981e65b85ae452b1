// Package osmem obtains and releases anonymous private mappings from the
// operating system's virtual-memory subsystem.
package osmem

import (
	"errors"
	"unsafe"
)

var (
	// ErrUnsupported is returned by Map on platforms without anonymous mmap.
	ErrUnsupported = errors.New("osmem: anonymous mappings not supported on this platform")

	// ErrBadSize is returned for zero-length or oversized mapping requests.
	ErrBadSize = errors.New("osmem: bad mapping size")
)

// maxMapping bounds a single request so that size fits in an int.
const maxMapping = uintptr(^uint(0) >> 1)

// System maps memory straight from the kernel. The zero value is ready to use.
type System struct{}

// Map returns size bytes of zeroed, page-aligned, read/write memory. When
// exec is set the mapping is also executable.
func (System) Map(size uintptr, exec bool) (unsafe.Pointer, error) {
	return Map(size, exec)
}

// Unmap releases a mapping previously returned by Map. size must be the
// exact length passed to Map.
func (System) Unmap(p unsafe.Pointer, size uintptr) error {
	return Unmap(p, size)
}
