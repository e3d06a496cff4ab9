package blockpool

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	slabsDesc = prometheus.NewDesc(
		"memkit_blockpool_slabs",
		"Slabs held by the pool, oversized buffers included.",
		[]string{"pool", "elem", "thread_safe", "tag"}, nil)
	oversizedDesc = prometheus.NewDesc(
		"memkit_blockpool_oversized_slabs",
		"Dedicated buffers serving requests larger than a slab.",
		[]string{"pool", "elem", "thread_safe", "tag"}, nil)
	liveDesc = prometheus.NewDesc(
		"memkit_blockpool_live_allocations",
		"Outstanding allocations across all slabs.",
		[]string{"pool", "elem", "thread_safe", "tag"}, nil)
	reservedDesc = prometheus.NewDesc(
		"memkit_blockpool_reserved_bytes",
		"Bytes backing all slabs of the pool.",
		[]string{"pool", "elem", "thread_safe", "tag"}, nil)
)

// Collector exports pool statistics as Prometheus metrics.
type Collector struct {
	source func() []PoolStats
}

var _ prometheus.Collector = (*Collector)(nil)

// Collector returns a Prometheus collector that snapshots the registry on
// every scrape. Scrapes read pool state, so pools that are not ThreadSafe
// must not be in use while the collector is registered; publish snapshots
// through a Published instead.
func (r *Registry) Collector() *Collector { return &Collector{source: r.Snapshot} }

// Published holds the last snapshot handed to Publish. The goroutine that
// drives the pools publishes between batches of work while scrapes read only
// the published copy.
type Published struct {
	mu    sync.RWMutex
	stats []PoolStats
}

// Publish replaces the published snapshot.
func (p *Published) Publish(stats []PoolStats) {
	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()
}

// Stats returns the published snapshot.
func (p *Published) Stats() []PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Collector returns a Prometheus collector over the published snapshot.
func (p *Published) Collector() *Collector { return &Collector{source: p.Stats} }

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- slabsDesc
	ch <- oversizedDesc
	ch <- liveDesc
	ch <- reservedDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, ps := range c.source() {
		labels := []string{ps.Name, ps.Elem, strconv.FormatBool(ps.ThreadSafe), ps.Tag}
		ch <- prometheus.MustNewConstMetric(slabsDesc, prometheus.GaugeValue, float64(ps.Slabs), labels...)
		ch <- prometheus.MustNewConstMetric(oversizedDesc, prometheus.GaugeValue, float64(ps.Oversized), labels...)
		ch <- prometheus.MustNewConstMetric(liveDesc, prometheus.GaugeValue, float64(ps.Live), labels...)
		ch <- prometheus.MustNewConstMetric(reservedDesc, prometheus.GaugeValue, float64(ps.ReservedBytes), labels...)
	}
}
