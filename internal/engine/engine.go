// Package engine wires the pager, the B+Tree, and the page-0 bloom filter
// into the operation surface the command dispatcher calls.
package engine

import (
	"go.uber.org/zap"

	"github.com/nujra-panda/forgeDB/internal/bloom"
	"github.com/nujra-panda/forgeDB/internal/bptree"
	"github.com/nujra-panda/forgeDB/internal/forgelog"
	"github.com/nujra-panda/forgeDB/internal/metrics"
	"github.com/nujra-panda/forgeDB/internal/page"
	"github.com/nujra-panda/forgeDB/internal/pager"
	"github.com/nujra-panda/forgeDB/internal/row"
)

// Engine owns the pager and tree for one database file.
type Engine struct {
	path  string
	pager *pager.Pager
	bloom *bloom.Filter
	tree  *bptree.BTree
}

// Open opens (or creates) the database at path, attaches the bloom filter
// to the pinned page-0 frame, and rebuilds it from a leaf scan.
func Open(path string) (*Engine, error) {
	pg, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	p0, err := pg.Get(page.HeaderPage)
	if err != nil {
		pg.Close()
		return nil, err
	}
	bf := bloom.Attach(p0)
	tree, err := bptree.New(pg, bf)
	if err != nil {
		pg.Close()
		return nil, err
	}

	e := &Engine{path: path, pager: pg, bloom: bf, tree: tree}
	e.trackHeight()
	forgelog.Info("database opened",
		zap.String("path", path),
		zap.Uint32("total_pages", pg.TotalPages()))
	return e, nil
}

// Close flushes every pooled frame and closes the file.
func (e *Engine) Close() error {
	forgelog.Info("database closing", zap.String("path", e.path))
	return e.pager.Close()
}

// Insert validates field bounds and adds the row under its id.
func (e *Engine) Insert(r row.Row) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := e.tree.Insert(r.ID, r); err != nil {
		return err
	}
	e.trackHeight()
	return nil
}

// Delete removes the row with the given id and returns the leaf page it
// was removed from.
func (e *Engine) Delete(id uint32) (uint32, error) {
	pageNum, err := e.tree.Remove(id)
	if err != nil {
		return 0, err
	}
	e.trackHeight()
	return pageNum, nil
}

// Lookup is a bloom-guarded point read.
func (e *Engine) Lookup(id uint32) (row.Row, bptree.LookupResult, error) {
	return e.tree.FindRow(id)
}

// SelectAll returns every row in key order.
func (e *Engine) SelectAll() ([]row.Row, error) {
	it, err := e.tree.SelectAll()
	if err != nil {
		return nil, err
	}
	return collect(it)
}

// Range returns all rows with start ≤ id ≤ end in key order.
func (e *Engine) Range(start, end uint32) ([]row.Row, error) {
	it, err := e.tree.RangeScan(start, end)
	if err != nil {
		return nil, err
	}
	return collect(it)
}

func collect(it *bptree.Iterator) ([]row.Row, error) {
	var rows []row.Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	return rows, it.Err()
}

// RebuildBloom re-derives the filter from the tree.
func (e *Engine) RebuildBloom() error {
	if err := e.tree.RebuildBloom(); err != nil {
		return err
	}
	e.bloom.Stats()
	return nil
}

// BloomStats reports filter saturation.
func (e *Engine) BloomStats() bloom.Stats { return e.bloom.Stats() }

// Header returns the current file header.
func (e *Engine) Header() pager.Header { return e.pager.Header() }

// PoolStats returns the buffer pool counters.
func (e *Engine) PoolStats() pager.Stats { return e.pager.Stats() }

// FreeList returns the free-page chain in list order.
func (e *Engine) FreeList() ([]uint32, error) { return e.pager.FreeList() }

// FreePage pushes the page onto the free list; pages 0 and 1 are refused.
func (e *Engine) FreePage(n uint32) error { return e.pager.FreePage(n) }

// Tree exposes the B+Tree for visualizers.
func (e *Engine) Tree() *bptree.BTree { return e.tree }

func (e *Engine) trackHeight() {
	if h, err := e.tree.Height(); err == nil {
		metrics.TreeHeight.Set(float64(h))
	}
}
