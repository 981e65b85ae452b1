package mmalloc

import (
	"sync"
	"unsafe"
)

// Shared is a goroutine-safe front end to a Heap for callers that do not
// keep their own Thread. Each call borrows a Thread from a pool, so no
// Thread is ever used by two goroutines at once and no lock is taken.
type Shared struct {
	heap    *Heap
	threads sync.Pool
}

// NewShared creates a Shared over h.
func NewShared(h *Heap) *Shared {
	s := &Shared{heap: h}
	s.threads.New = func() any { return h.NewThread() }
	return s
}

// Heap returns the underlying heap.
func (s *Shared) Heap() *Heap { return s.heap }

func (s *Shared) get() *Thread  { return s.threads.Get().(*Thread) }
func (s *Shared) put(t *Thread) { s.threads.Put(t) }

// Malloc is Thread.Malloc on a pooled Thread.
func (s *Shared) Malloc(size uintptr) unsafe.Pointer {
	t := s.get()
	defer s.put(t)
	return t.Malloc(size)
}

// Free releases p.
func (s *Shared) Free(p unsafe.Pointer) {
	s.heap.Free(p)
}

// Realloc is Thread.Realloc on a pooled Thread.
func (s *Shared) Realloc(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	t := s.get()
	defer s.put(t)
	return t.Realloc(p, size)
}

// Memalign is Thread.Memalign on a pooled Thread.
func (s *Shared) Memalign(alignment, size uintptr) unsafe.Pointer {
	t := s.get()
	defer s.put(t)
	return t.Memalign(alignment, size)
}

// Calloc is Thread.Calloc on a pooled Thread.
func (s *Shared) Calloc(count, size uintptr) unsafe.Pointer {
	t := s.get()
	defer s.put(t)
	return t.Calloc(count, size)
}

// PosixMemalign is Thread.PosixMemalign on a pooled Thread.
func (s *Shared) PosixMemalign(alignment, size uintptr) (unsafe.Pointer, error) {
	t := s.get()
	defer s.put(t)
	return t.PosixMemalign(alignment, size)
}

// Valloc is Thread.Valloc on a pooled Thread.
func (s *Shared) Valloc(size uintptr) unsafe.Pointer {
	t := s.get()
	defer s.put(t)
	return t.Valloc(size)
}

// Pvalloc is Thread.Pvalloc on a pooled Thread.
func (s *Shared) Pvalloc(size uintptr) unsafe.Pointer {
	t := s.get()
	defer s.put(t)
	return t.Pvalloc(size)
}

// AlignedAlloc is Thread.AlignedAlloc on a pooled Thread.
func (s *Shared) AlignedAlloc(alignment, size uintptr) unsafe.Pointer {
	t := s.get()
	defer s.put(t)
	return t.AlignedAlloc(alignment, size)
}

// UsableSize returns the number of bytes usable at p.
func (s *Shared) UsableSize(p unsafe.Pointer) uintptr {
	return s.heap.UsableSize(p)
}

// Process-wide default, built on first use.

var std = sync.OnceValue(func() *Shared {
	h, err := New(Config{})
	if err != nil {
		panic(err)
	}
	return NewShared(h)
})

// Default returns the process-wide Shared used by the package-level
// functions.
func Default() *Shared { return std() }

// Malloc allocates size bytes from the default heap.
func Malloc(size uintptr) unsafe.Pointer { return std().Malloc(size) }

// Free releases p to the default heap.
func Free(p unsafe.Pointer) { std().Free(p) }

// Realloc resizes p on the default heap.
func Realloc(p unsafe.Pointer, size uintptr) unsafe.Pointer { return std().Realloc(p, size) }

// Memalign allocates aligned memory from the default heap.
func Memalign(alignment, size uintptr) unsafe.Pointer { return std().Memalign(alignment, size) }

// Calloc allocates zeroed memory from the default heap.
func Calloc(count, size uintptr) unsafe.Pointer { return std().Calloc(count, size) }

// PosixMemalign allocates aligned memory from the default heap.
func PosixMemalign(alignment, size uintptr) (unsafe.Pointer, error) {
	return std().PosixMemalign(alignment, size)
}

// Valloc allocates page-aligned memory from the default heap.
func Valloc(size uintptr) unsafe.Pointer { return std().Valloc(size) }

// Pvalloc allocates whole pages from the default heap.
func Pvalloc(size uintptr) unsafe.Pointer { return std().Pvalloc(size) }

// AlignedAlloc allocates aligned memory from the default heap.
func AlignedAlloc(alignment, size uintptr) unsafe.Pointer {
	return std().AlignedAlloc(alignment, size)
}

// UsableSize returns the number of bytes usable at p.
func UsableSize(p unsafe.Pointer) uintptr { return std().UsableSize(p) }
