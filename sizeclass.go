package mmalloc

import "math/bits"

// minPayload is the smallest payload ever handed out.
const minPayload = 2 * wordSize

// classOf returns the power-of-two size class for a payload of n bytes:
// the smallest k with 1<<k >= max(n, minPayload).
func classOf(n uintptr) int {
	if n < minPayload {
		n = minPayload
	}
	return bits.Len(uint(n - 1))
}

// slotWidth is the width of a slot of class k, header included.
func slotWidth(k int) uintptr {
	return slotHeaderSize + uintptr(1)<<k
}

// smallClassCount returns K, the number of small classes for blocks of
// blockSize bytes. A class is small while at least two of its slots fit in
// one block.
func smallClassCount(blockSize uintptr) int {
	usable := blockSize - blockHeaderSize
	k := 0
	for usable/slotWidth(k) >= 2 {
		k++
	}
	return k
}

// Class describes one small size class.
type Class struct {
	Index    int     // class index k
	Payload  uintptr // largest payload served, 1<<k
	Width    uintptr // slot width including the header
	PerBlock int     // slots carved from one block
}

// Classes returns the small size classes of h, smallest first. Classes
// below the minimum payload are never used and are omitted.
func (h *Heap) Classes() []Class {
	classes := make([]Class, 0, h.small)
	for k := classOf(minPayload); k < h.small; k++ {
		w := slotWidth(k)
		classes = append(classes, Class{
			Index:    k,
			Payload:  uintptr(1) << k,
			Width:    w,
			PerBlock: int((h.blockSize - blockHeaderSize) / w),
		})
	}
	return classes
}
