package bptree

import (
	"github.com/nujra-panda/forgeDB/internal/bloom"
	"github.com/nujra-panda/forgeDB/internal/page"
	"github.com/nujra-panda/forgeDB/internal/row"
)

// Iterator walks rows in key order along the leaf sibling chain.
type Iterator struct {
	t       *BTree
	leaf    uint32
	idx     int
	end     uint32
	bounded bool
	cur     row.Row
	err     error
}

// SelectAll returns an iterator over every row, starting from the
// leftmost leaf.
func (t *BTree) SelectAll() (*Iterator, error) {
	leftmost, err := t.leftmostLeaf()
	if err != nil {
		return nil, err
	}
	return &Iterator{t: t, leaf: leftmost}, nil
}

// RangeScan returns an iterator over rows with start ≤ id ≤ end.
func (t *BTree) RangeScan(start, end uint32) (*Iterator, error) {
	leafPage, _, err := t.find(start)
	if err != nil {
		return nil, err
	}
	pp, err := t.pager.Get(leafPage)
	if err != nil {
		return nil, err
	}
	idx, _ := Leaf(pp).search(start)
	return &Iterator{t: t, leaf: leafPage, idx: idx, end: end, bounded: true}, nil
}

// Next advances to the next row, re-fetching the leaf frame on every call.
func (it *Iterator) Next() bool {
	for it.leaf != page.InvalidPage {
		pp, err := it.t.pager.Get(it.leaf)
		if err != nil {
			it.err = err
			return false
		}
		leaf := Leaf(pp)
		if it.idx < leaf.NumCells() {
			if it.bounded && leaf.Key(it.idx) > it.end {
				return false
			}
			it.cur = leaf.Row(it.idx)
			it.idx++
			return true
		}
		it.leaf = leaf.Next()
		it.idx = 0
	}
	return false
}

// Row returns the row positioned by the last successful Next.
func (it *Iterator) Row() row.Row { return it.cur }

// Err returns the first I/O error the iterator hit, if any.
func (it *Iterator) Err() error { return it.err }

// LookupResult classifies a point lookup.
type LookupResult int

const (
	// LookupFound means the row was located in a leaf.
	LookupFound LookupResult = iota
	// LookupBloomNegative means the bloom filter proved absence with zero
	// tree reads.
	LookupBloomNegative
	// LookupFalsePositive means the bloom filter said maybe but the leaf
	// lacks the key.
	LookupFalsePositive
)

// FindRow performs a point lookup, short-circuiting on a bloom negative.
func (t *BTree) FindRow(id uint32) (row.Row, LookupResult, error) {
	if !t.bloom.PossiblyContains(id) {
		return row.Row{}, LookupBloomNegative, nil
	}
	leafPage, _, err := t.find(id)
	if err != nil {
		return row.Row{}, LookupFalsePositive, err
	}
	pp, err := t.pager.Get(leafPage)
	if err != nil {
		return row.Row{}, LookupFalsePositive, err
	}
	leaf := Leaf(pp)
	for i := 0; i < leaf.NumCells(); i++ {
		if leaf.Key(i) == id {
			return leaf.Row(i), LookupFound, nil
		}
	}
	return row.Row{}, LookupFalsePositive, nil
}

// leftmostLeaf descends via child 0 from the root.
func (t *BTree) leftmostLeaf() (uint32, error) {
	curr := t.root
	for {
		pp, err := t.pager.Get(curr)
		if err != nil {
			return 0, err
		}
		if pp.Type() != page.KindInternal {
			return curr, nil
		}
		curr = Internal(pp).Child(0)
	}
}

// RebuildBloom clears the filter and re-adds every key via a leaf-chain
// walk. Run at open and after bulk deletes; the filter has no remove.
func (t *BTree) RebuildBloom() error {
	t.bloom.Clear()
	curr, err := t.leftmostLeaf()
	if err != nil {
		return err
	}
	for curr != page.InvalidPage {
		pp, err := t.pager.Get(curr)
		if err != nil {
			return err
		}
		leaf := Leaf(pp)
		for i := 0; i < leaf.NumCells(); i++ {
			t.bloom.Add(leaf.Key(i))
		}
		curr = leaf.Next()
	}
	return nil
}

// Bloom exposes the attached filter for stats and debug commands.
func (t *BTree) Bloom() *bloom.Filter { return t.bloom }

// Height counts levels by descending the leftmost spine.
func (t *BTree) Height() (int, error) {
	h := 1
	curr := t.root
	for {
		pp, err := t.pager.Get(curr)
		if err != nil {
			return 0, err
		}
		if pp.Type() != page.KindInternal {
			return h, nil
		}
		h++
		curr = Internal(pp).Child(0)
	}
}
