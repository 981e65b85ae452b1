package mmalloc

import "github.com/prometheus/client_golang/prometheus"

type collector struct {
	heap     *Heap
	mapped   *prometheus.Desc
	released *prometheus.Desc
	resident *prometheus.Desc
	peak     *prometheus.Desc
	failures *prometheus.Desc
}

// NewCollector exports h's metrics to Prometheus under namespace.
func NewCollector(h *Heap, namespace string) prometheus.Collector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "heap", n) }
	return &collector{
		heap: h,
		mapped: prometheus.NewDesc(name("blocks_mapped_total"),
			"Blocks obtained from the OS.", []string{"kind"}, nil),
		released: prometheus.NewDesc(name("blocks_released_total"),
			"Blocks returned to the OS.", []string{"kind"}, nil),
		resident: prometheus.NewDesc(name("resident_bytes"),
			"Bytes currently mapped.", nil, nil),
		peak: prometheus.NewDesc(name("peak_resident_bytes"),
			"High-water mark of mapped bytes.", nil, nil),
		failures: prometheus.NewDesc(name("os_failures_total"),
			"Mapping and unmapping requests the OS refused.", []string{"op"}, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mapped
	ch <- c.released
	ch <- c.resident
	ch <- c.peak
	ch <- c.failures
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m := c.heap.Metrics()
	counter := func(d *prometheus.Desc, v int64, label string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), label)
	}
	counter(c.mapped, m.SmallBlocksMapped, "small")
	counter(c.mapped, m.LargeBlocksMapped, "large")
	counter(c.released, m.SmallBlocksReleased, "small")
	counter(c.released, m.LargeBlocksReleased, "large")
	counter(c.failures, m.MapFailures, "map")
	counter(c.failures, m.UnmapFailures, "unmap")
	ch <- prometheus.MustNewConstMetric(c.resident, prometheus.GaugeValue, float64(m.ResidentBytes))
	ch <- prometheus.MustNewConstMetric(c.peak, prometheus.GaugeValue, float64(m.PeakResidentBytes))
}
