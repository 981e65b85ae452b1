package mmalloc

import (
	"fmt"
	"math/bits"
	"unsafe"
)

// Calloc returns count*size zeroed bytes. It returns nil if the product
// overflows, is zero, or the OS refuses memory.
func (t *Thread) Calloc(count, size uintptr) unsafe.Pointer {
	t.panicIfClosed()
	hi, n := bits.Mul(uint(count), uint(size))
	if hi != 0 {
		return nil
	}
	p := t.Malloc(uintptr(n))
	if p != nil {
		clear(unsafe.Slice((*byte)(p), n))
	}
	return p
}

// PosixMemalign allocates size bytes aligned to alignment, which must be a
// power of two and a multiple of the word size. A zero size yields a nil
// pointer and no error. Use Errno to obtain the POSIX status code.
func (t *Thread) PosixMemalign(alignment, size uintptr) (unsafe.Pointer, error) {
	t.panicIfClosed()
	if alignment == 0 || alignment%wordSize != 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %d", ErrInvalidArgument, alignment)
	}
	if size == 0 {
		return nil, nil
	}
	p := t.Memalign(alignment, size)
	if p == nil {
		return nil, fmt.Errorf("%w: %d bytes aligned to %d", ErrOutOfMemory, size, alignment)
	}
	return p, nil
}

// Valloc allocates size bytes aligned to the page size.
func (t *Thread) Valloc(size uintptr) unsafe.Pointer {
	t.panicIfClosed()
	return t.Memalign(t.heap.pageSize, size)
}

// Pvalloc is Valloc with size rounded up to a whole number of pages.
func (t *Thread) Pvalloc(size uintptr) unsafe.Pointer {
	t.panicIfClosed()
	if size > t.heap.maxRequest {
		return nil
	}
	return t.Memalign(t.heap.pageSize, alignUp(size, t.heap.pageSize))
}

// AlignedAlloc is the strict form of Memalign: size must be a non-zero
// multiple of alignment.
func (t *Thread) AlignedAlloc(alignment, size uintptr) unsafe.Pointer {
	t.panicIfClosed()
	if alignment == 0 || alignment > size || size%alignment != 0 {
		return nil
	}
	return t.Memalign(alignment, size)
}
