// Package metrics registers the engine's Prometheus collectors against a
// private registry. Nothing is served over HTTP; DumpText writes a snapshot
// in text exposition format for the .metrics command.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	registry = prometheus.NewRegistry()

	PagerHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forgedb_pager_hits_total",
		Help: "Buffer pool cache hits.",
	})
	PagerMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forgedb_pager_misses_total",
		Help: "Buffer pool cache misses.",
	})
	PagerEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forgedb_pager_evictions_total",
		Help: "LRU frames evicted from the buffer pool.",
	})
	BloomFillRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "forgedb_bloom_fill_ratio",
		Help: "Fraction of bloom filter bits currently set.",
	})
	PoolFramesInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "forgedb_pool_frames_in_use",
		Help: "Frames currently resident in the buffer pool.",
	})
	TreeHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "forgedb_tree_height",
		Help: "Current height of the B+Tree.",
	})
)

func init() {
	registry.MustRegister(
		PagerHits, PagerMisses, PagerEvictions,
		BloomFillRatio, PoolFramesInUse, TreeHeight,
	)
}

// DumpText writes the current metric snapshot to w in Prometheus text
// exposition format.
func DumpText(w io.Writer) error {
	mfs, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
