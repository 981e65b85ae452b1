package mmalloc

import (
	"math/bits"
	"unsafe"
)

// Typed helpers. The memory lives outside the Go heap and is not scanned by
// the garbage collector, so T must not contain Go pointers (pointers,
// slices, strings, maps, channels, funcs or interfaces).

// sizeAlign returns T's size, never 0, and alignment.
func sizeAlign[T any]() (uintptr, uintptr) {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		size = 1
	}
	return size, unsafe.Alignof(zero)
}

// Alloc returns a zeroed T allocated from t, or nil on failure.
func Alloc[T any](t *Thread) *T {
	p := AllocUninitialized[T](t)
	if p != nil {
		clear(unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p)))
	}
	return p
}

// AllocUninitialized returns a T allocated from t without zeroing it.
func AllocUninitialized[T any](t *Thread) *T {
	size, align := sizeAlign[T]()
	return (*T)(t.Memalign(align, size))
}

// Delete frees a value returned by Alloc or AllocUninitialized.
func Delete[T any](t *Thread, p *T) {
	t.Free(unsafe.Pointer(p))
}

// AllocSlice allocates a slice of n elements from t. The elements are not
// initialized. Returns nil if n <= 0 or the allocation fails.
func AllocSlice[T any](t *Thread, n int) []T {
	if n <= 0 {
		return nil
	}
	size, align := sizeAlign[T]()
	hi, total := bits.Mul(uint(size), uint(n))
	if hi != 0 {
		return nil
	}
	p := t.Memalign(align, uintptr(total))
	if p == nil {
		return nil
	}
	return unsafe.Slice((*T)(p), n)
}

// AllocSliceZeroed is AllocSlice with zeroed elements.
func AllocSliceZeroed[T any](t *Thread, n int) []T {
	s := AllocSlice[T](t, n)
	if s != nil {
		clear(s)
	}
	return s
}

// FreeSlice frees a slice returned by AllocSlice or AllocSliceZeroed.
func FreeSlice[T any](t *Thread, s []T) {
	if cap(s) == 0 {
		return
	}
	t.Free(unsafe.Pointer(unsafe.SliceData(s)))
}

// Bytes views n bytes at p as a slice. It returns nil for a nil p.
func Bytes(p unsafe.Pointer, n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}
