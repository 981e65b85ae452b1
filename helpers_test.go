package mmalloc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/pavanmanishd/mmalloc/internal/osmem"
)

var errInjected = errors.New("injected map failure")

// testMapper maps real memory, remembers every live mapping and refuses to
// unmap anything with a size other than the one it was mapped with.
type testMapper struct {
	sys     osmem.System
	limited atomic.Bool
	budget  atomic.Int64 // maps still allowed while limited

	mu   sync.Mutex
	live map[uintptr]uintptr
}

func newTestMapper() *testMapper {
	return &testMapper{live: make(map[uintptr]uintptr)}
}

// failAfter lets n more Map calls succeed.
func (m *testMapper) failAfter(n int64) {
	m.budget.Store(n)
	m.limited.Store(true)
}

func (m *testMapper) Map(size uintptr, exec bool) (unsafe.Pointer, error) {
	if m.limited.Load() && m.budget.Add(-1) < 0 {
		return nil, errInjected
	}
	p, err := m.sys.Map(size, exec)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.live[uintptr(p)] = size
	m.mu.Unlock()
	return p, nil
}

func (m *testMapper) Unmap(p unsafe.Pointer, size uintptr) error {
	m.mu.Lock()
	want, ok := m.live[uintptr(p)]
	if ok && want == size {
		delete(m.live, uintptr(p))
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unmap of unknown mapping %p", p)
	}
	if want != size {
		return fmt.Errorf("unmap %p with size %d, mapped %d", p, size, want)
	}
	return m.sys.Unmap(p, size)
}

func (m *testMapper) liveMappings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// newTestHeap returns a heap on a fresh testMapper.
func newTestHeap(t testing.TB) (*Heap, *testMapper) {
	t.Helper()
	m := newTestMapper()
	h, err := New(Config{Mapper: m})
	require.NoError(t, err)
	return h, m
}

// fill writes a recognizable pattern over n bytes at p.
func fill(p unsafe.Pointer, n uintptr, seed byte) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = seed + byte(i)
	}
}

// fataler is the part of testing.TB that *rapid.T also provides.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// checkFill reports the first byte that does not match fill's pattern.
func checkFill(t fataler, p unsafe.Pointer, n uintptr, seed byte) {
	t.Helper()
	b := unsafe.Slice((*byte)(p), n)
	for i, c := range b {
		if c != seed+byte(i) {
			t.Fatalf("byte %d at %p: got %d, want %d", i, p, c, seed+byte(i))
		}
	}
}

// requireAllReleased asserts that every mapping h made has been returned.
func requireAllReleased(t testing.TB, h *Heap, m *testMapper) {
	t.Helper()
	met := h.Metrics()
	require.Equal(t, met.SmallBlocksMapped, met.SmallBlocksReleased, "small blocks leaked: %v", met)
	require.Equal(t, met.LargeBlocksMapped, met.LargeBlocksReleased, "large blocks leaked: %v", met)
	require.Zero(t, met.ResidentBytes)
	require.Zero(t, met.UnmapFailures)
	require.Zero(t, m.liveMappings())
}
