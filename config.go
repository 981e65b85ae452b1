package mmalloc

import (
	"io"
	"log/slog"
	"unsafe"

	"github.com/pavanmanishd/mmalloc/internal/osmem"
)

// Mapper obtains and releases whole mappings from the OS. Map must return
// zeroed memory aligned to at least the page size.
type Mapper interface {
	Map(size uintptr, exec bool) (unsafe.Pointer, error)
	Unmap(p unsafe.Pointer, size uintptr) error
}

// Config controls a Heap. The zero value selects the defaults.
type Config struct {
	// BlockSize is the size of a small-object block. 0 selects the OS page
	// size; otherwise it must be a power-of-two multiple of the page size.
	BlockSize int

	// Executable maps every block with execute permission as well as
	// read/write. Leave unset unless the memory will hold generated code.
	Executable bool

	// Logger receives block lifecycle events. nil discards them.
	Logger *slog.Logger

	// Mapper overrides the OS mapping primitives. nil uses mmap.
	Mapper Mapper
}

// discard is the logger used when Config.Logger is nil.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = osmem.PageSize()
	}
	if c.Logger == nil {
		c.Logger = discard
	}
	if c.Mapper == nil {
		c.Mapper = osmem.System{}
	}
	return c
}
