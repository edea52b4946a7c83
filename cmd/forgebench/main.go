// Command forgebench drives the native B+Tree engine and a Pebble-backed
// LSM store through the same workload mix, records latency and memory
// footprint to CSV, and renders a comparison chart.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/nujra-panda/forgeDB/internal/bptree"
	"github.com/nujra-panda/forgeDB/internal/engine"
	"github.com/nujra-panda/forgeDB/internal/forgelog"
	"github.com/nujra-panda/forgeDB/internal/lsmcompare"
	"github.com/nujra-panda/forgeDB/internal/pager"
	"github.com/nujra-panda/forgeDB/internal/row"
)

const scale = 5000

var operations = []string{"Load", "Workload_OLTP", "Workload_OLAP", "Workload_Range"}

// engineStore adapts engine.Engine to the benchmark surface.
type engineStore struct {
	eng *engine.Engine
}

func (s engineStore) Insert(r row.Row) error { return s.eng.Insert(r) }

func (s engineStore) Get(id uint32) (row.Row, bool, error) {
	r, result, err := s.eng.Lookup(id)
	return r, err == nil && result == bptree.LookupFound, err
}

func (s engineStore) Range(start, end uint32) ([]row.Row, error) {
	return s.eng.Range(start, end)
}

func (s engineStore) Close() error { return s.eng.Close() }

func (s engineStore) BenchStats() (pager.Stats, float64) {
	return s.eng.PoolStats(), s.eng.BloomStats().Fill
}

func main() {
	forgelog.Init(false)
	_ = os.Mkdir("results", 0o755)

	f, err := os.Create("results/bench.csv")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create csv: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	rec := newRecorder(f)

	workDir, err := os.MkdirTemp("", "forgebench")
	if err != nil {
		fmt.Fprintf(os.Stderr, "tempdir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	latencies := make(map[string][]float64)

	eng, err := engine.Open(filepath.Join(workDir, "bench.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open forgedb: %v\n", err)
		os.Exit(1)
	}
	latencies["forgedb"] = runSuite(rec, "forgedb", engineStore{eng}, scale)

	lsm, err := lsmcompare.Open(filepath.Join(workDir, "pebble"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open pebble: %v\n", err)
		os.Exit(1)
	}
	latencies["pebble"] = runSuite(rec, "pebble", lsm, scale)

	rec.flush()

	if err := renderChart(latencies, "results/latency.png"); err != nil {
		fmt.Fprintf(os.Stderr, "chart: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Benchmark complete. Results in results/bench.csv and results/latency.png.")
}

// runSuite loads n rows, then runs each workload, returning per-operation
// latencies for charting.
func runSuite(rec *recorder, name string, st store, n int) []float64 {
	fmt.Printf("Testing %s\n", name)
	defer st.Close()

	rng := rand.New(rand.NewSource(1))
	lats := make([]float64, 0, len(operations))

	// 1. Pure insert (initial load).
	start := time.Now()
	for k := 0; k < n; k++ {
		_ = st.Insert(benchRow(uint32(k)))
	}
	lat := time.Since(start).Nanoseconds() / int64(n)
	rec.record(st, name, "Load", lat)
	lats = append(lats, float64(lat))

	// 2. OLTP (read heavy).
	start = time.Now()
	ExecuteWorkload(st, OLTP, n/2, rng)
	lat = time.Since(start).Nanoseconds() / int64(n/2)
	rec.record(st, name, "Workload_OLTP", lat)
	lats = append(lats, float64(lat))

	// 3. OLAP (write heavy).
	start = time.Now()
	ExecuteWorkload(st, OLAP, n/2, rng)
	lat = time.Since(start).Nanoseconds() / int64(n/2)
	rec.record(st, name, "Workload_OLAP", lat)
	lats = append(lats, float64(lat))

	// 4. Range scans.
	start = time.Now()
	ExecuteWorkload(st, Reporting, 100, rng)
	lat = time.Since(start).Nanoseconds() / 100
	rec.record(st, name, "Workload_Range", lat)
	lats = append(lats, float64(lat))

	return lats
}

// renderChart draws grouped latency bars per workload for both engines.
func renderChart(latencies map[string][]float64, path string) error {
	p := plot.New()
	p.Title.Text = "Latency by workload"
	p.Y.Label.Text = "ns/op"

	width := vg.Points(20)

	forge, err := plotter.NewBarChart(plotter.Values(latencies["forgedb"]), width)
	if err != nil {
		return err
	}
	forge.Color = plotutil.Color(0)
	forge.Offset = -width / 2

	pebbleBars, err := plotter.NewBarChart(plotter.Values(latencies["pebble"]), width)
	if err != nil {
		return err
	}
	pebbleBars.Color = plotutil.Color(1)
	pebbleBars.Offset = width / 2

	p.Add(forge, pebbleBars)
	p.Legend.Add("forgedb", forge)
	p.Legend.Add("pebble", pebbleBars)
	p.Legend.Top = true
	p.NominalX(operations...)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
