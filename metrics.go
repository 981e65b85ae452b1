package mmalloc

import (
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// stats are the heap-wide counters. They move only when a block is mapped
// or released, never on the per-allocation path.
type stats struct {
	smallMapped   atomic.Int64
	smallReleased atomic.Int64
	largeMapped   atomic.Int64
	largeReleased atomic.Int64
	resident      atomic.Int64
	peak          atomic.Int64
	mapFailures   atomic.Int64
	unmapFailures atomic.Int64
}

func (s *stats) mapped(large bool, size uintptr) {
	if large {
		s.largeMapped.Add(1)
	} else {
		s.smallMapped.Add(1)
	}
	now := s.resident.Add(int64(size))
	for {
		peak := s.peak.Load()
		if now <= peak || s.peak.CompareAndSwap(peak, now) {
			return
		}
	}
}

func (s *stats) released(large bool, size uintptr) {
	if large {
		s.largeReleased.Add(1)
	} else {
		s.smallReleased.Add(1)
	}
	s.resident.Add(-int64(size))
}

// HeapMetrics is a snapshot of a heap's block lifecycle counters.
type HeapMetrics struct {
	BlockSize           int   // bytes per small-object block
	PageSize            int   // OS page size
	SmallClasses        int   // classes carved from shared blocks
	SmallBlocksMapped   int64 // small blocks obtained from the OS
	SmallBlocksReleased int64 // small blocks returned to the OS
	LargeBlocksMapped   int64 // dedicated mappings obtained
	LargeBlocksReleased int64 // dedicated mappings returned
	ResidentBytes       int64 // bytes currently mapped
	PeakResidentBytes   int64 // high-water mark of ResidentBytes
	MapFailures         int64 // mapping requests the OS refused
	UnmapFailures       int64 // unmapping requests the OS refused
}

// LiveBlocks returns the number of blocks still mapped.
func (m HeapMetrics) LiveBlocks() int64 {
	return m.SmallBlocksMapped - m.SmallBlocksReleased + m.LargeBlocksMapped - m.LargeBlocksReleased
}

func (m HeapMetrics) String() string {
	return fmt.Sprintf("blocks: %s small (%s live), %s large (%s live); resident %s, peak %s; failures: %d map, %d unmap",
		humanize.Comma(m.SmallBlocksMapped), humanize.Comma(m.SmallBlocksMapped-m.SmallBlocksReleased),
		humanize.Comma(m.LargeBlocksMapped), humanize.Comma(m.LargeBlocksMapped-m.LargeBlocksReleased),
		humanize.IBytes(uint64(m.ResidentBytes)), humanize.IBytes(uint64(m.PeakResidentBytes)),
		m.MapFailures, m.UnmapFailures)
}

// Metrics returns a snapshot of h's counters. Counters are read one at a
// time, so a snapshot taken while other goroutines allocate may be skewed.
func (h *Heap) Metrics() HeapMetrics {
	return HeapMetrics{
		BlockSize:           int(h.blockSize),
		PageSize:            int(h.pageSize),
		SmallClasses:        h.small,
		SmallBlocksMapped:   h.stats.smallMapped.Load(),
		SmallBlocksReleased: h.stats.smallReleased.Load(),
		LargeBlocksMapped:   h.stats.largeMapped.Load(),
		LargeBlocksReleased: h.stats.largeReleased.Load(),
		ResidentBytes:       h.stats.resident.Load(),
		PeakResidentBytes:   h.stats.peak.Load(),
		MapFailures:         h.stats.mapFailures.Load(),
		UnmapFailures:       h.stats.unmapFailures.Load(),
	}
}

// ThreadMetrics counts what one Thread has done. Only the owning goroutine
// updates them.
type ThreadMetrics struct {
	Allocs        int64 // slots carved from small blocks
	LargeAllocs   int64 // dedicated mappings requested
	AlignedAllocs int64 // Memalign calls that over-allocated
	Moves         int64 // Realloc calls that copied to a new allocation
	CarvedBytes   int64 // slot bytes carved, headers included
	ActiveBlocks  int   // classes with a block being carved
}

// Metrics returns a snapshot of t's counters.
func (t *Thread) Metrics() ThreadMetrics {
	m := t.metrics
	if t.bin != nil {
		m.ActiveBlocks = t.bin.activeBlocks()
	}
	return m
}
