package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/process"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/mmalloc"
)

type stressOptions struct {
	Producers  int
	Consumers  int
	Count      int
	MinSize    uint64
	MaxSize    uint64
	Alignment  uint64
	BlockSize  int
	Executable bool
	Metrics    bool
}

var runOpts stressOptions

func init() {
	cmd := newRunCmd()
	f := cmd.Flags()
	f.IntVarP(&runOpts.Producers, "threads", "t", 4, "Allocating goroutines, each with its own Thread")
	f.IntVar(&runOpts.Consumers, "consumers", 4, "Goroutines freeing what producers allocate")
	f.IntVarP(&runOpts.Count, "count", "n", 100000, "Allocations per producer")
	f.Uint64Var(&runOpts.MinSize, "min-size", 1, "Smallest request in bytes")
	f.Uint64Var(&runOpts.MaxSize, "max-size", 2048, "Largest request in bytes")
	f.Uint64Var(&runOpts.Alignment, "align", 0, "Use Memalign with this alignment (0 = Malloc)")
	f.IntVar(&runOpts.BlockSize, "block-size", 0, "Small-object block size in bytes (0 = page size)")
	f.BoolVar(&runOpts.Executable, "exec", false, "Map blocks with execute permission")
	f.BoolVar(&runOpts.Metrics, "metrics", false, "Print the Prometheus samples of the heap")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Allocate on some goroutines and free on others",
		Long: `The run command starts producer goroutines that allocate random
sizes, fill them with a pattern and hand them to consumer goroutines, which
verify the pattern and free them. It fails if any block mapped during the run
is still mapped at the end.

Example:
  mmstress run
  mmstress run --threads 16 --count 1000000 --max-size 65536
  mmstress run --align 256 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd.OutOrStdout(), runOpts)
		},
	}
}

type stressReport struct {
	Options  stressOptions
	Duration time.Duration
	Heap     mmalloc.HeapMetrics
	Threads  mmalloc.ThreadMetrics
	RSSBytes uint64   `json:",omitempty"`
	Samples  []string `json:",omitempty"`
}

type parcel struct {
	p    unsafe.Pointer
	size uintptr
	seed byte
}

func (o stressOptions) validate() error {
	switch {
	case o.Producers < 1 || o.Consumers < 1:
		return fmt.Errorf("need at least one producer and one consumer")
	case o.Count < 0:
		return fmt.Errorf("negative count %d", o.Count)
	case o.MinSize == 0 || o.MinSize > o.MaxSize:
		return fmt.Errorf("bad size range [%d, %d]", o.MinSize, o.MaxSize)
	case o.Alignment&(o.Alignment-1) != 0:
		return fmt.Errorf("alignment %d is not a power of two", o.Alignment)
	}
	return nil
}

func stress(ctx context.Context, opts stressOptions, log *slog.Logger) (*stressReport, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	h, err := mmalloc.New(mmalloc.Config{
		BlockSize:  opts.BlockSize,
		Executable: opts.Executable,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	queues := make([]chan parcel, opts.Consumers)
	for i := range queues {
		queues[i] = make(chan parcel, 1024)
	}

	var consumers errgroup.Group
	for _, q := range queues {
		consumers.Go(func() error {
			var err error
			for m := range q {
				if err == nil {
					err = verify(m)
				}
				h.Free(m.p)
			}
			return err
		})
	}

	totals := make([]mmalloc.ThreadMetrics, opts.Producers)
	producers, pctx := errgroup.WithContext(ctx)
	for n := range opts.Producers {
		producers.Go(func() error {
			t := h.NewThread()
			defer func() {
				totals[n] = t.Metrics()
				t.Close()
			}()
			rng := rand.New(rand.NewPCG(uint64(n), uint64(start.UnixNano())))
			span := opts.MaxSize - opts.MinSize + 1
			for i := range opts.Count {
				size := uintptr(opts.MinSize + rng.Uint64N(span))
				var p unsafe.Pointer
				if opts.Alignment > 0 {
					p = t.Memalign(uintptr(opts.Alignment), size)
				} else {
					p = t.Malloc(size)
				}
				if p == nil {
					return fmt.Errorf("producer %d: allocation %d of %d bytes: %w", n, i, size, mmalloc.ErrOutOfMemory)
				}
				seed := byte(rng.Uint32())
				b := unsafe.Slice((*byte)(p), size)
				for j := range b {
					b[j] = seed + byte(j)
				}
				select {
				case queues[rng.IntN(len(queues))] <- parcel{p: p, size: size, seed: seed}:
				case <-pctx.Done():
					h.Free(p)
					return pctx.Err()
				}
			}
			return nil
		})
	}

	perr := producers.Wait()
	for _, q := range queues {
		close(q)
	}
	cerr := consumers.Wait()

	rep := &stressReport{
		Options:  opts,
		Duration: time.Since(start),
		Heap:     h.Metrics(),
	}
	for _, m := range totals {
		rep.Threads.Allocs += m.Allocs
		rep.Threads.LargeAllocs += m.LargeAllocs
		rep.Threads.AlignedAllocs += m.AlignedAllocs
		rep.Threads.CarvedBytes += m.CarvedBytes
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			rep.RSSBytes = mi.RSS
		}
	}
	if opts.Metrics {
		if rep.Samples, err = gatherSamples(h); err != nil {
			return rep, err
		}
	}

	switch {
	case perr != nil:
		return rep, perr
	case cerr != nil:
		return rep, cerr
	case rep.Heap.LiveBlocks() != 0:
		return rep, fmt.Errorf("%d blocks still mapped after every allocation was freed", rep.Heap.LiveBlocks())
	}
	log.Info("stress run complete", "duration", rep.Duration, "allocs", rep.Threads.Allocs+rep.Threads.LargeAllocs)
	return rep, nil
}

// verify checks the fill pattern a producer wrote.
func verify(m parcel) error {
	b := unsafe.Slice((*byte)(m.p), m.size)
	for i, c := range b {
		if c != m.seed+byte(i) {
			return fmt.Errorf("corrupt byte %d of %d-byte allocation at %p", i, m.size, m.p)
		}
	}
	return nil
}

// gatherSamples renders h's Prometheus samples as "name{labels} value".
func gatherSamples(h *mmalloc.Heap) ([]string, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(mmalloc.NewCollector(h, "mmstress")); err != nil {
		return nil, err
	}
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			v := m.GetCounter().GetValue() + m.GetGauge().GetValue()
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			out = append(out, fmt.Sprintf("%s %g", name, v))
		}
	}
	return out, nil
}

func runRun(ctx context.Context, w io.Writer, opts stressOptions) error {
	rep, err := stress(ctx, opts, newLogger())
	if rep == nil {
		return err
	}
	if jsonOut {
		if perr := printJSON(w, rep); perr != nil {
			return perr
		}
		return err
	}

	m := rep.Heap
	allocs := rep.Threads.Allocs + rep.Threads.LargeAllocs
	rows := [][]string{
		{"Duration", rep.Duration.Round(time.Millisecond).String()},
		{"Allocations", humanize.Comma(allocs)},
		{"Aligned", humanize.Comma(rep.Threads.AlignedAllocs)},
		{"Carved", humanize.IBytes(uint64(rep.Threads.CarvedBytes))},
		{"Small blocks", fmt.Sprintf("%s mapped, %s released", humanize.Comma(m.SmallBlocksMapped), humanize.Comma(m.SmallBlocksReleased))},
		{"Large blocks", fmt.Sprintf("%s mapped, %s released", humanize.Comma(m.LargeBlocksMapped), humanize.Comma(m.LargeBlocksReleased))},
		{"Peak resident", humanize.IBytes(uint64(m.PeakResidentBytes))},
		{"OS failures", fmt.Sprintf("%d map, %d unmap", m.MapFailures, m.UnmapFailures)},
	}
	if rep.RSSBytes > 0 {
		rows = append(rows, []string{"Process RSS", humanize.IBytes(rep.RSSBytes)})
	}
	printTable(w, []string{"Metric", "Value"}, rows)
	for _, s := range rep.Samples {
		fmt.Fprintln(w, s)
	}
	return err
}
