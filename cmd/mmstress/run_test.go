package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestStress(t *testing.T) {
	tests := []struct {
		name string
		opts stressOptions
	}{
		{"small", stressOptions{Producers: 2, Consumers: 2, Count: 2000, MinSize: 1, MaxSize: 512}},
		{"mixed", stressOptions{Producers: 3, Consumers: 2, Count: 500, MinSize: 1, MaxSize: 20000}},
		{"aligned", stressOptions{Producers: 2, Consumers: 3, Count: 500, MinSize: 8, MaxSize: 300, Alignment: 128}},
		{"big blocks", stressOptions{Producers: 2, Consumers: 2, Count: 1000, MinSize: 100, MaxSize: 4000, BlockSize: 1 << 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := stress(context.Background(), tt.opts, quietLog)
			require.NoError(t, err)
			assert.Zero(t, rep.Heap.LiveBlocks())
			assert.Zero(t, rep.Heap.ResidentBytes)
			assert.Equal(t, int64(tt.opts.Producers*tt.opts.Count), rep.Threads.Allocs+rep.Threads.LargeAllocs)
			if tt.opts.Alignment > 0 {
				assert.Positive(t, rep.Threads.AlignedAllocs)
			}
		})
	}
}

func TestStressInvalidOptions(t *testing.T) {
	tests := []stressOptions{
		{Producers: 0, Consumers: 1, Count: 1, MinSize: 1, MaxSize: 1},
		{Producers: 1, Consumers: 1, Count: -1, MinSize: 1, MaxSize: 1},
		{Producers: 1, Consumers: 1, Count: 1, MinSize: 0, MaxSize: 1},
		{Producers: 1, Consumers: 1, Count: 1, MinSize: 10, MaxSize: 1},
		{Producers: 1, Consumers: 1, Count: 1, MinSize: 1, MaxSize: 1, Alignment: 24},
	}
	for _, opts := range tests {
		_, err := stress(context.Background(), opts, quietLog)
		assert.Error(t, err, "%+v", opts)
	}
}

func TestStressCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := stressOptions{Producers: 2, Consumers: 1, Count: 1 << 20, MinSize: 1, MaxSize: 64}
	rep, err := stress(ctx, opts, quietLog)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rep.Heap.LiveBlocks())
}

func TestGatherSamples(t *testing.T) {
	opts := stressOptions{Producers: 1, Consumers: 1, Count: 10, MinSize: 1, MaxSize: 5000, Metrics: true}
	rep, err := stress(context.Background(), opts, quietLog)
	require.NoError(t, err)
	require.Len(t, rep.Samples, 8)
	assert.Contains(t, rep.Samples, `mmstress_heap_resident_bytes 0`)
}

func TestRunOutput(t *testing.T) {
	opts := stressOptions{Producers: 1, Consumers: 1, Count: 100, MinSize: 1, MaxSize: 100}

	var buf bytes.Buffer
	require.NoError(t, runRun(context.Background(), &buf, opts))
	assert.Contains(t, buf.String(), "Small blocks")

	jsonOut = true
	defer func() { jsonOut = false }()
	buf.Reset()
	require.NoError(t, runRun(context.Background(), &buf, opts))
	var rep stressReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, int64(100), rep.Threads.Allocs)
}

func TestRunClasses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runClasses(&buf, 0))
	assert.Contains(t, buf.String(), "PER BLOCK")

	require.Error(t, runClasses(&buf, 1000))
}
