package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/nujra-panda/forgeDB/internal/bptree"
	"github.com/nujra-panda/forgeDB/internal/dberrors"
	"github.com/nujra-panda/forgeDB/internal/engine"
	"github.com/nujra-panda/forgeDB/internal/metrics"
	"github.com/nujra-panda/forgeDB/internal/row"
	"github.com/nujra-panda/forgeDB/internal/viz"
)

// dispatchLine translates one textual command into core calls and prints
// the result lines. It returns false when the line asks to exit.
func dispatchLine(eng *engine.Engine, w io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "insert":
		if len(fields) != 4 {
			fmt.Fprintln(w, "Usage: insert <id> <username> <email>")
			return true
		}
		id, err := parseID(fields[1])
		if err != nil {
			fmt.Fprintln(w, "Usage: insert <id> <username> <email>")
			return true
		}
		runInsert(eng, w, row.Row{ID: id, Username: fields[2], Email: fields[3]})

	case "delete":
		id, ok := singleID(w, fields, "Usage: delete <id>")
		if ok {
			runDelete(eng, w, id)
		}

	case "select":
		runSelect(eng, w)

	case "range":
		if len(fields) != 3 {
			fmt.Fprintln(w, "Usage: range <start_id> <end_id>")
			return true
		}
		start, err1 := parseID(fields[1])
		end, err2 := parseID(fields[2])
		if err1 != nil || err2 != nil {
			fmt.Fprintln(w, "Usage: range <start_id> <end_id>")
			return true
		}
		runRange(eng, w, start, end)

	case "lookup":
		id, ok := singleID(w, fields, "Usage: lookup <id>")
		if ok {
			runLookup(eng, w, id)
		}

	case ".tree", "tree":
		runTree(eng, w)
	case ".json", "json":
		runJSON(eng, w)
	case ".stats", "stats":
		runStats(eng, w)
	case ".pool", "pool":
		runPool(eng, w)
	case ".freelist", "freelist":
		runFreeList(eng, w)
	case ".metrics", "metrics":
		runMetrics(w)

	case ".bloom", "bloom":
		if len(fields) > 1 && fields[1] == "rebuild" {
			runBloomRebuild(eng, w)
		} else {
			runBloomStats(eng, w)
		}

	case ".free", "free":
		id, ok := singleID(w, fields, "Usage: .free <page_num>  (page must be > 1)")
		if ok {
			runFreePage(eng, w, id)
		}

	case "exit":
		return false

	default:
		fmt.Fprintln(w, "Unrecognized command.")
	}
	return true
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

func singleID(w io.Writer, fields []string, usage string) (uint32, bool) {
	if len(fields) != 2 {
		fmt.Fprintln(w, usage)
		return 0, false
	}
	id, err := parseID(fields[1])
	if err != nil {
		fmt.Fprintln(w, usage)
		return 0, false
	}
	return id, true
}

func runInsert(eng *engine.Engine, w io.Writer, r row.Row) {
	if err := eng.Insert(r); err != nil {
		if errors.Is(err, dberrors.ErrDuplicateKey) {
			fmt.Fprintf(w, "Error: Duplicate key %d\n", r.ID)
		} else {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		return
	}
	fmt.Fprintln(w, "Executed.")
}

func runDelete(eng *engine.Engine, w io.Writer, id uint32) {
	pageNum, err := eng.Delete(id)
	if err != nil {
		if errors.Is(err, dberrors.ErrKeyNotFound) {
			fmt.Fprintf(w, "Error: Key %d not found\n", id)
		} else {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		return
	}
	fmt.Fprintf(w, "Deleted key %d from Page %d.\n", id, pageNum)
}

func printRow(w io.Writer, r row.Row) {
	fmt.Fprintf(w, "  (%d, %s, %s)\n", r.ID, r.Username, r.Email)
}

func runSelect(eng *engine.Engine, w io.Writer) {
	rows, err := eng.SelectAll()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	for _, r := range rows {
		printRow(w, r)
	}
}

func runRange(eng *engine.Engine, w io.Writer, start, end uint32) {
	rows, err := eng.Range(start, end)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	for _, r := range rows {
		printRow(w, r)
	}
}

func runLookup(eng *engine.Engine, w io.Writer, id uint32) {
	r, result, err := eng.Lookup(id)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	switch result {
	case bptree.LookupFound:
		fmt.Fprintf(w, "Found: (%d, %s, %s)\n", r.ID, r.Username, r.Email)
	case bptree.LookupBloomNegative:
		fmt.Fprintf(w, "Key %d not present (bloom definite negative, 0 disk reads).\n", id)
	case bptree.LookupFalsePositive:
		fmt.Fprintf(w, "Key %d not present (bloom false positive).\n", id)
	}
}

func runTree(eng *engine.Engine, w io.Writer) {
	if err := viz.WriteTree(w, eng.Tree()); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func runJSON(eng *engine.Engine, w io.Writer) {
	if err := viz.WriteJSON(w, eng.Tree()); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func runStats(eng *engine.Engine, w io.Writer) {
	hdr := eng.Header()
	freeHead := "(none)"
	if hdr.FirstFreePage != 0 {
		freeHead = strconv.FormatUint(uint64(hdr.FirstFreePage), 10)
	}
	fmt.Fprintln(w, "=== ForgeDB Stats ===")
	fmt.Fprintf(w, "Magic:       %#x\n", hdr.Magic)
	fmt.Fprintf(w, "Page Size:   %d bytes\n", hdr.PageSize)
	fmt.Fprintf(w, "Total Pages: %d\n", hdr.TotalPages)
	fmt.Fprintf(w, "Free Pages:  %d\n", hdr.FreePages)
	fmt.Fprintf(w, "Free Head:   %s\n", freeHead)
}

func runPool(eng *engine.Engine, w io.Writer) {
	st := eng.PoolStats()
	fmt.Fprintln(w, "=== Buffer Pool ===")
	fmt.Fprintf(w, "Frames:     %d / 100\n", st.Frames)
	fmt.Fprintf(w, "Pinned:     %d\n", st.Pinned)
	fmt.Fprintf(w, "Cache Hits: %d\n", st.Hits)
	fmt.Fprintf(w, "Misses:     %d\n", st.Misses)
	fmt.Fprintf(w, "Evictions:  %d\n", st.Evictions)
	if st.Hits+st.Misses > 0 {
		fmt.Fprintf(w, "Hit Ratio:  %.1f%%\n", st.HitRatio()*100)
	}
}

func runFreeList(eng *engine.Engine, w io.Writer) {
	list, err := eng.FreeList()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "Free List: (empty)")
		return
	}
	parts := make([]string, len(list))
	for i, pg := range list {
		parts[i] = fmt.Sprintf("[Page %d]", pg)
	}
	fmt.Fprintf(w, "Free List: %s\n", strings.Join(parts, " -> "))
}

func runBloomStats(eng *engine.Engine, w io.Writer) {
	st := eng.BloomStats()
	fmt.Fprintln(w, "=== Bloom Filter ===")
	fmt.Fprintf(w, "Size:     %d bytes (%d bits)\n", st.SizeBytes, st.Bits)
	fmt.Fprintf(w, "Bits Set: %d / %d\n", st.BitsSet, st.Bits)
	fmt.Fprintf(w, "Fill:     %.1f%%\n", st.Fill*100)
	fmt.Fprintf(w, "Est. FPR: ~%.4f%%\n", st.EstFPR*100)
}

func runBloomRebuild(eng *engine.Engine, w io.Writer) {
	if err := eng.RebuildBloom(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, "Bloom filter rebuilt from B+Tree.")
}

func runFreePage(eng *engine.Engine, w io.Writer, pageNum uint32) {
	if err := eng.FreePage(pageNum); err != nil {
		if errors.Is(err, dberrors.ErrFreeForbidden) {
			fmt.Fprintf(w, "Error: cannot free page %d (page must be > 1)\n", pageNum)
		} else {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		return
	}
	fmt.Fprintf(w, "Freed page %d.\n", pageNum)
}

func runMetrics(w io.Writer) {
	if err := metrics.DumpText(w); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
