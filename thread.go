package mmalloc

import (
	"runtime"
	"unsafe"
)

// Thread is one allocating context: it owns a bin of active blocks and
// carves from them without synchronization. Use a Thread from a single
// goroutine at a time; memory it hands out may be freed from anywhere.
//
// A Thread that becomes unreachable without Close still returns its carving
// rights once the garbage collector notices.
type Thread struct {
	heap    *Heap
	bin     *bin
	cleanup runtime.Cleanup
	metrics ThreadMetrics
}

func newThread(h *Heap) *Thread {
	t := &Thread{heap: h, bin: newBin(h)}
	t.cleanup = runtime.AddCleanup(t, (*bin).retire, t.bin)
	return t
}

// Heap returns the heap t allocates from.
func (t *Thread) Heap() *Heap { return t.heap }

// Close gives up t's active blocks. Outstanding allocations stay valid.
// Close is idempotent. After Close every allocating method panics; Free,
// UsableSize and Metrics keep working.
func (t *Thread) Close() {
	if t.bin == nil {
		return
	}
	t.cleanup.Stop()
	t.bin.retire()
	t.bin = nil
}

// Malloc returns at least size bytes, or nil if size is 0 or the OS refuses
// memory. The memory is not guaranteed to be zeroed.
func (t *Thread) Malloc(size uintptr) unsafe.Pointer {
	t.panicIfClosed()
	if size == 0 {
		return nil
	}
	p, err := t.malloc(size)
	if err != nil {
		return nil
	}
	return p
}

func (t *Thread) malloc(size uintptr) (unsafe.Pointer, error) {
	h := t.heap
	k := classOf(size)
	if k >= h.small {
		p, err := h.mapLarge(size)
		if err != nil {
			return nil, err
		}
		t.metrics.LargeAllocs++
		return p, nil
	}

	blk := t.bin.active[k]
	if blk == nil {
		var err error
		if blk, err = h.mapSmall(k); err != nil {
			return nil, err
		}
		t.bin.active[k] = blk
	}
	width := slotWidth(k)
	p, exhausted := blk.carve(width)
	if exhausted {
		t.bin.active[k] = nil
	}
	t.metrics.Allocs++
	t.metrics.CarvedBytes += int64(width)
	return p, nil
}

// Free releases p. It is the same as t.Heap().Free(p).
func (t *Thread) Free(p unsafe.Pointer) {
	t.heap.Free(p)
}

// UsableSize returns the number of bytes usable at p.
func (t *Thread) UsableSize(p unsafe.Pointer) uintptr {
	return t.heap.UsableSize(p)
}

// Memalign returns size bytes aligned to alignment, which must be a power
// of two. It returns nil for size 0 or an illegal alignment.
//
// Large alignments over-allocate and copy the real header to just before
// the aligned address, so Free and Realloc on the result reach the owning
// block. The headroom before the aligned address is wasted.
func (t *Thread) Memalign(alignment, size uintptr) unsafe.Pointer {
	t.panicIfClosed()
	if size == 0 || alignment == 0 || alignment&(alignment-1) != 0 {
		return nil
	}
	if alignment <= slotHeaderSize {
		return t.Malloc(size)
	}
	if alignment > t.heap.maxRequest || size > t.heap.maxRequest-alignment-slotHeaderSize {
		return nil
	}
	base := t.Malloc(size + alignment - 1 + slotHeaderSize)
	if base == nil {
		return nil
	}
	t.metrics.AlignedAllocs++
	off := alignUp(uintptr(base), alignment) - uintptr(base)
	if off == 0 {
		return base
	}
	p := unsafe.Add(base, off)
	*headerOf(p) = *headerOf(base)
	return p
}

// Realloc resizes p to at least size bytes. A nil p behaves as Malloc and a
// zero size frees p and returns nil. p is returned unchanged when it already
// has room; otherwise the contents move to a new allocation and p is freed.
// On failure nil is returned and p is left untouched.
func (t *Thread) Realloc(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	t.panicIfClosed()
	if p == nil {
		return t.Malloc(size)
	}
	if size == 0 {
		t.heap.Free(p)
		return nil
	}
	have := t.heap.UsableSize(p)
	if have >= size {
		return p
	}
	q := t.Malloc(size)
	if q == nil {
		return nil
	}
	copy(unsafe.Slice((*byte)(q), have), unsafe.Slice((*byte)(p), have))
	t.heap.Free(p)
	t.metrics.Moves++
	return q
}

// panicIfClosed panics if the thread has been closed.
func (t *Thread) panicIfClosed() {
	if t.bin == nil {
		panic("mmalloc: use of Thread after Close()")
	}
}
