// Package mmalloc implements a general-purpose allocator whose memory comes
// straight from the operating system's virtual-memory subsystem and lives
// outside the Go heap.
//
// # Overview
//
// Requests are bucketed into power-of-two size classes. Small classes are
// carved from page-sized blocks with a bump cursor; anything larger gets a
// dedicated mapping. Every pointer handed out is preceded by a two-word
// header naming its slot width and owning block, which is all Free and
// Realloc ever consult.
//
// # Basic Usage
//
//	h, err := mmalloc.New(mmalloc.Config{})
//	if err != nil {
//		return err
//	}
//	t := h.NewThread()
//	defer t.Close()
//
//	p := t.Malloc(128)
//	buf := mmalloc.Bytes(p, 128)
//	copy(buf, "hello")
//	p = t.Realloc(p, 4096)
//	t.Free(p)
//
// The package-level functions (Malloc, Free, Realloc, Calloc, Memalign,
// PosixMemalign, Valloc, Pvalloc, AlignedAlloc) use a process-wide default
// heap and are safe for concurrent use.
//
// # Threads
//
// A Thread owns one table of active blocks, one per size class, and carves
// from them without any synchronization. A Thread must be used by a single
// goroutine at a time. Memory allocated by one Thread may be freed from any
// goroutine: each block keeps an atomic count of outstanding slots, and the
// goroutine whose Free takes it to zero unmaps the block.
//
// Shared lends pooled Threads to callers that do not want to manage one.
//
// # Memory Layout
//
// A small block begins with its own bookkeeping followed by equal slots of
// header plus payload. A large block has the same bookkeeping, whose last two
// words double as the header of its single payload.
//
// # Important Notes
//
//   - Freed slots are not reused; a block is returned to the OS only once all
//     of its slots have been freed. One long-lived slot pins its whole block.
//   - Realloc never shrinks and never grows in place.
//   - Memory is not zeroed unless allocated with Calloc, Alloc or
//     AllocSliceZeroed.
//   - The garbage collector does not scan this memory: never store Go
//     pointers in it.
//
// # Metrics and Monitoring
//
//	fmt.Println(h.Metrics())
//	prometheus.MustRegister(mmalloc.NewCollector(h, "myapp"))
package mmalloc
