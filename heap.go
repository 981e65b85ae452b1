package mmalloc

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/pavanmanishd/mmalloc/internal/osmem"
)

// Heap holds what all threads of one allocator share: its geometry, the
// OS mapper and block lifecycle counters. A Heap has no lock; threads carve
// from their own bins and only meet on a block's atomic free counter.
type Heap struct {
	blockSize   uintptr
	pageSize    uintptr
	small       int     // number of small classes, K
	maxSmallFit uintptr // widest small slot
	maxRequest  uintptr // largest size whose mapping arithmetic cannot overflow
	exec        bool
	mapper      Mapper
	log         *slog.Logger
	stats       stats
}

// New creates a Heap. It maps nothing until the first allocation.
func New(cfg Config) (*Heap, error) {
	cfg = cfg.withDefaults()
	page := osmem.PageSize()
	switch {
	case cfg.BlockSize < 0:
		return nil, fmt.Errorf("%w: negative block size %d", ErrBadConfig, cfg.BlockSize)
	case cfg.BlockSize&(cfg.BlockSize-1) != 0:
		return nil, fmt.Errorf("%w: block size %d is not a power of two", ErrBadConfig, cfg.BlockSize)
	case cfg.BlockSize < page:
		return nil, fmt.Errorf("%w: block size %d below page size %d", ErrBadConfig, cfg.BlockSize, page)
	}
	h := &Heap{
		blockSize: uintptr(cfg.BlockSize),
		pageSize:  uintptr(page),
		exec:      cfg.Executable,
		mapper:    cfg.Mapper,
		log:       cfg.Logger,
	}
	h.small = smallClassCount(h.blockSize)
	h.maxSmallFit = slotWidth(h.small - 1)
	h.maxRequest = ^uintptr(0)>>1 - blockHeaderSize - h.pageSize
	if cfg.Executable {
		h.log.Warn("heap maps executable memory")
	}
	return h, nil
}

// BlockSize returns the size of a small-object block.
func (h *Heap) BlockSize() int { return int(h.blockSize) }

// PageSize returns the OS page size the heap rounds large mappings to.
func (h *Heap) PageSize() int { return int(h.pageSize) }

// SmallClasses returns K: classes below it are carved from shared blocks,
// classes at or above it get a dedicated mapping.
func (h *Heap) SmallClasses() int { return h.small }

// NewThread returns a Thread with an empty bin. A Thread must not be used
// by more than one goroutine at a time.
func (h *Heap) NewThread() *Thread {
	return newThread(h)
}

// Free releases p, which may have been allocated by any Thread of h. The
// block holding p is unmapped once its last outstanding allocation is freed.
// Free(nil) is a no-op.
func (h *Heap) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	b := (*arenaBlock)(headerOf(p).owner)
	if b.free.Add(-1) == 0 {
		h.release(b)
	}
}

// UsableSize returns the number of bytes that may be used at p, which is at
// least the size requested when p was allocated. It is exact for pointers
// returned by Memalign as well.
func (h *Heap) UsableSize(p unsafe.Pointer) uintptr {
	if p == nil {
		return 0
	}
	hdr := headerOf(p)
	owner, at := uintptr(hdr.owner), uintptr(p)
	if hdr.size > h.maxSmallFit {
		return owner + hdr.size - at
	}
	first := (*arenaBlock)(hdr.owner).firstSlot()
	slot := (at - slotHeaderSize - first) / hdr.size
	return first + (slot+1)*hdr.size - at
}

// mapSmall maps a fresh block for class k.
func (h *Heap) mapSmall(k int) (*arenaBlock, error) {
	base, err := h.mapper.Map(h.blockSize, h.exec)
	if err != nil {
		h.stats.mapFailures.Add(1)
		h.log.Warn("map block failed", "class", k, "size", h.blockSize, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	h.stats.mapped(false, h.blockSize)
	b := initSmall(base, h.blockSize, slotWidth(k))
	h.log.Debug("mapped block", "class", k, "slots", b.avail)
	return b, nil
}

// mapLarge maps a block dedicated to a single payload of size bytes.
func (h *Heap) mapLarge(size uintptr) (unsafe.Pointer, error) {
	if size > h.maxRequest {
		return nil, fmt.Errorf("%w: %d bytes", ErrOutOfMemory, size)
	}
	mapping := alignUp(size+blockHeaderSize, h.pageSize)
	base, err := h.mapper.Map(mapping, h.exec)
	if err != nil {
		h.stats.mapFailures.Add(1)
		h.log.Warn("map large block failed", "size", mapping, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	h.stats.mapped(true, mapping)
	h.log.Debug("mapped large block", "request", size, "size", mapping)
	return initLarge(base, mapping), nil
}

// release unmaps b. Called exactly once, by whoever drove b.free to 0.
func (h *Heap) release(b *arenaBlock) {
	size := b.meta.mapped
	large := b.meta.cursor == unsafe.Pointer(b)
	if err := h.mapper.Unmap(unsafe.Pointer(b), size); err != nil {
		h.stats.unmapFailures.Add(1)
		h.log.Error("unmap block failed", "size", size, "err", err)
		return
	}
	h.stats.released(large, size)
	h.log.Debug("released block", "size", size, "large", large)
}
