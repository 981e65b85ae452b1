package mmalloc

import (
	"sync/atomic"
	"unsafe"
)

// wordSize is the machine word size in bytes.
const wordSize = unsafe.Sizeof(uintptr(0))

// slotHeader precedes every pointer handed to a caller.
type slotHeader struct {
	size  uintptr        // slot width for small slots, mapping size for large blocks
	owner unsafe.Pointer // owning *arenaBlock; lookup only
}

// blockMeta is a block's own bookkeeping. It has the same layout as
// slotHeader so that a large block's meta doubles as its self-header.
type blockMeta struct {
	mapped uintptr        // total mapping size, written once
	cursor unsafe.Pointer // next slot to carve; self for large blocks
}

// arenaBlock sits at offset 0 of its mapping. It is either a small block,
// carved into equal slots, or a large block dedicated to one request.
type arenaBlock struct {
	free  atomic.Int64 // outstanding allocations; released on 0
	avail int64        // slots never carved; owner thread only
	meta  blockMeta    // must stay last
}

const (
	slotHeaderSize  = unsafe.Sizeof(slotHeader{})
	blockHeaderSize = unsafe.Sizeof(arenaBlock{})
)

// Layout checks: a large block's meta must sit exactly one header before
// its payload.
var (
	_ [slotHeaderSize - unsafe.Sizeof(blockMeta{})]struct{}
	_ [unsafe.Sizeof(blockMeta{}) - slotHeaderSize]struct{}
	_ [blockHeaderSize - unsafe.Offsetof(arenaBlock{}.meta) - slotHeaderSize]struct{}
	_ [unsafe.Offsetof(arenaBlock{}.meta) + slotHeaderSize - blockHeaderSize]struct{}
)

// headerOf returns the header immediately before p.
func headerOf(p unsafe.Pointer) *slotHeader {
	return (*slotHeader)(unsafe.Add(p, -int(slotHeaderSize)))
}

// initSmall formats a fresh mapping of size bytes as a small block with
// slots of width bytes.
func initSmall(base unsafe.Pointer, size, width uintptr) *arenaBlock {
	b := (*arenaBlock)(base)
	capacity := int64((size - blockHeaderSize) / width)
	b.free.Store(capacity)
	b.avail = capacity
	b.meta.mapped = size
	b.meta.cursor = unsafe.Add(base, blockHeaderSize)
	return b
}

// initLarge formats a fresh mapping of size bytes as a dedicated block and
// returns the payload pointer.
func initLarge(base unsafe.Pointer, size uintptr) unsafe.Pointer {
	b := (*arenaBlock)(base)
	b.free.Store(1)
	b.avail = 0
	b.meta.mapped = size
	b.meta.cursor = base
	return unsafe.Add(base, blockHeaderSize)
}

// carve hands out the next slot of width bytes and reports whether the
// block has no slots left to carve.
func (b *arenaBlock) carve(width uintptr) (p unsafe.Pointer, exhausted bool) {
	slot := b.meta.cursor
	b.meta.cursor = unsafe.Add(slot, width)
	h := (*slotHeader)(slot)
	h.size = width
	h.owner = unsafe.Pointer(b)
	b.avail--
	return unsafe.Add(slot, slotHeaderSize), b.avail == 0
}

// firstSlot is the address of a small block's first slot.
func (b *arenaBlock) firstSlot() uintptr {
	return uintptr(unsafe.Pointer(b)) + blockHeaderSize
}

// alignUp rounds n up to a multiple of align, a power of two.
func alignUp(n, align uintptr) uintptr {
	mask := align - 1
	return (n + mask) &^ mask
}
