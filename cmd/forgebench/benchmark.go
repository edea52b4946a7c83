package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/nujra-panda/forgeDB/internal/pager"
)

// statsReporter is implemented by stores that can expose their buffer
// pool counters and bloom filter saturation alongside the latency
// measurements. The Pebble store cannot, so its rows carry blanks.
type statsReporter interface {
	BenchStats() (pool pager.Stats, bloomFill float64)
}

// recorder emits one CSV row per (engine, operation) measurement: the
// latency, the live heap, and the engine-internal cache and filter
// numbers that explain where the latency comes from.
type recorder struct {
	w *csv.Writer
}

func newRecorder(w io.Writer) *recorder {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"Engine", "TestType", "LatencyNs", "HeapMB", "HeapObjects",
		"PoolHits", "PoolMisses", "PoolEvictions", "PoolHitRatio", "BloomFill",
	})
	return &recorder{w: cw}
}

// record samples the live heap (after a forced GC, so garbage does not
// inflate the footprint) plus the store's own counters, then writes the
// row.
func (rec *recorder) record(st store, engine, op string, latencyNs int64) {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	poolCols := []string{"", "", "", "", ""}
	if sr, ok := st.(statsReporter); ok {
		pool, fill := sr.BenchStats()
		poolCols = []string{
			strconv.FormatUint(pool.Hits, 10),
			strconv.FormatUint(pool.Misses, 10),
			strconv.FormatUint(pool.Evictions, 10),
			fmt.Sprintf("%.3f", pool.HitRatio()),
			fmt.Sprintf("%.4f", fill),
		}
	}

	_ = rec.w.Write(append([]string{
		engine,
		op,
		strconv.FormatInt(latencyNs, 10),
		strconv.FormatUint(m.Alloc>>20, 10),
		strconv.FormatUint(m.HeapObjects, 10),
	}, poolCols...))
}

func (rec *recorder) flush() { rec.w.Flush() }
