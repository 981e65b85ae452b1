package mmalloc

// bin maps each small size class to the block currently carved for it.
// It belongs to exactly one Thread and is never shared.
type bin struct {
	heap   *Heap
	active []*arenaBlock
}

func newBin(h *Heap) *bin {
	return &bin{heap: h, active: make([]*arenaBlock, h.small)}
}

// retire gives up carving rights on every active block. Slots that were
// never carved are subtracted from the block's free counter, so the block
// is released as soon as its carved slots are all freed, or right away if
// none are outstanding.
func (b *bin) retire() {
	for k, blk := range b.active {
		if blk == nil {
			continue
		}
		b.active[k] = nil
		left := blk.avail
		blk.avail = 0
		if blk.free.Add(-left) == 0 {
			b.heap.release(blk)
		}
	}
}

// activeBlocks returns the number of classes with a block being carved.
func (b *bin) activeBlocks() int {
	n := 0
	for _, blk := range b.active {
		if blk != nil {
			n++
		}
	}
	return n
}
