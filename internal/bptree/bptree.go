package bptree

import (
	"go.uber.org/zap"

	"github.com/cockroachdb/errors"

	"github.com/nujra-panda/forgeDB/internal/bloom"
	"github.com/nujra-panda/forgeDB/internal/dberrors"
	"github.com/nujra-panda/forgeDB/internal/forgelog"
	"github.com/nujra-panda/forgeDB/internal/page"
	"github.com/nujra-panda/forgeDB/internal/pager"
	"github.com/nujra-panda/forgeDB/internal/row"
)

// BTree is the disk-backed ordered index. It holds a non-owning reference
// to the Pager and the page-0 bloom filter; the root lives at page 1.
type BTree struct {
	pager *pager.Pager
	bloom *bloom.Filter
	root  uint32
}

// New attaches a tree to the pager, creating the root leaf on a fresh
// database, and rebuilds the bloom filter from a leaf scan.
func New(pg *pager.Pager, bf *bloom.Filter) (*BTree, error) {
	t := &BTree{pager: pg, bloom: bf, root: page.RootPage}

	if pg.TotalPages() <= page.RootPage {
		rootPage, err := pg.Allocate()
		if err != nil {
			return nil, err
		}
		if rootPage != page.RootPage {
			return nil, errors.Wrapf(dberrors.ErrInvariantViolation,
				"fresh root allocated at page %d", rootPage)
		}
		pp, err := pg.Get(rootPage)
		if err != nil {
			return nil, err
		}
		Leaf(pp).Init()
		pp.SetIsRoot(true)
	}

	if err := t.RebuildBloom(); err != nil {
		return nil, err
	}
	return t, nil
}

// Pager exposes the underlying pager for visualizers and debug commands.
func (t *BTree) Pager() *pager.Pager { return t.pager }

// Root returns the root page number.
func (t *BTree) Root() uint32 { return t.root }

// find descends from the root to the leaf where key belongs, recording the
// internal pages on the way down (root first). The path stands in for
// parent pointers during splits and rebalances.
func (t *BTree) find(key uint32) (uint32, []uint32, error) {
	curr := t.root
	var path []uint32
	for {
		pp, err := t.pager.Get(curr)
		if err != nil {
			return 0, nil, err
		}
		if pp.Type() != page.KindInternal {
			return curr, path, nil
		}
		path = append(path, curr)
		curr = Internal(pp).FindChild(key)
	}
}

// Insert adds a row under its id, rejecting duplicates, marking the bloom
// filter, and splitting the leaf when the row does not fit.
func (t *BTree) Insert(id uint32, r row.Row) error {
	leafPage, path, err := t.find(id)
	if err != nil {
		return err
	}
	pp, err := t.pager.Get(leafPage)
	if err != nil {
		return err
	}
	leaf := Leaf(pp)

	if _, found := leaf.search(id); found {
		return dberrors.DuplicateKey(id)
	}

	t.bloom.Add(id)

	if !leaf.CanFit(row.Size(r)) {
		return t.splitLeaf(leafPage, path, id, r)
	}
	leaf.Insert(id, r)
	return nil
}

// splitLeaf redistributes the leaf's rows plus the new one across the old
// page and a fresh sibling, balancing by encoded bytes, then promotes the
// sibling's first key into the parent.
func (t *BTree) splitLeaf(pageNum uint32, path []uint32, newKey uint32, newRow row.Row) error {
	pp, err := t.pager.Get(pageNum)
	if err != nil {
		return err
	}
	old := Leaf(pp)

	// Collect all rows (existing + new) in sorted order.
	n := old.NumCells()
	all := make([]row.Row, 0, n+1)
	inserted := false
	for i := 0; i < n; i++ {
		if !inserted && newKey < old.Key(i) {
			all = append(all, newRow)
			inserted = true
		}
		all = append(all, old.Row(i))
	}
	if !inserted {
		all = append(all, newRow)
	}

	// Split point by bytes: smallest prefix exceeding half the usable
	// space, with a floor of one record in the left half.
	half := LeafUsableSpace / 2
	running, splitPoint := 0, 0
	for i, rr := range all {
		running += row.Size(rr) + SlotSize
		if running > half {
			splitPoint = i
			if splitPoint == 0 {
				splitPoint = 1
			}
			break
		}
	}
	if splitPoint == 0 {
		splitPoint = len(all) / 2
	}

	wasRoot := pp.IsRoot()
	oldNext := old.Next()

	newPage, err := t.pager.Allocate()
	if err != nil {
		return err
	}

	// Re-read after allocation: the frame may have been recycled.
	pp, err = t.pager.Get(pageNum)
	if err != nil {
		return err
	}
	old = Leaf(pp)
	old.Init()
	pp.SetIsRoot(wasRoot)
	for _, rr := range all[:splitPoint] {
		old.Insert(rr.ID, rr)
	}
	old.SetNext(newPage)

	np, err := t.pager.Get(newPage)
	if err != nil {
		return err
	}
	newLeaf := Leaf(np)
	newLeaf.Init()
	for _, rr := range all[splitPoint:] {
		newLeaf.Insert(rr.ID, rr)
	}
	newLeaf.SetNext(oldNext)

	separator := all[splitPoint].ID

	if wasRoot {
		// The root must stay at page 1: copy the left half out to a fresh
		// page and rebuild page 1 as an internal root over both halves.
		leftCopy, err := t.pager.Allocate()
		if err != nil {
			return err
		}
		src, err := t.pager.Get(pageNum)
		if err != nil {
			return err
		}
		tmp := *src
		dst, err := t.pager.Get(leftCopy)
		if err != nil {
			return err
		}
		*dst = tmp
		dst.SetIsRoot(false)

		rp, err := t.pager.Get(pageNum)
		if err != nil {
			return err
		}
		root := Internal(rp)
		root.Init()
		rp.SetIsRoot(true)
		root.SetNumKeys(1)
		root.SetChild(0, leftCopy)
		root.SetKey(0, separator)
		root.SetRightChild(newPage)

		forgelog.Debug("leaf root split",
			zap.Uint32("left", leftCopy),
			zap.Uint32("separator", separator),
			zap.Uint32("right", newPage))
		return nil
	}

	parentPage := path[len(path)-1]
	parentP, err := t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent := Internal(parentP)
	childIndex, ok := findChildIndex(parent, pageNum)
	if !ok {
		return errors.Wrapf(dberrors.ErrInvariantViolation,
			"child %d not found in parent %d", pageNum, parentPage)
	}

	if parent.NumKeys() >= InternalMaxCells {
		return t.splitInternal(parentPage, childIndex, separator, newPage, path[:len(path)-1])
	}
	parent.InsertChild(childIndex, separator, newPage)
	forgelog.Debug("leaf split",
		zap.Uint32("page", pageNum),
		zap.Uint32("new", newPage),
		zap.Uint32("separator", separator))
	return nil
}

// splitInternal materializes the N+1 keys and N+2 children that would
// result from splicing (newKey, newChild) at childIndex, pushes the middle
// key up, and recurses into the grandparent when the parent is full too.
func (t *BTree) splitInternal(internalPage uint32, childIndex int, newKey, newChild uint32, path []uint32) error {
	pp, err := t.pager.Get(internalPage)
	if err != nil {
		return err
	}
	node := Internal(pp)
	numKeys := node.NumKeys()

	keys := make([]uint32, numKeys+1)
	children := make([]uint32, numKeys+2)

	for i := 0; i <= childIndex; i++ {
		children[i] = node.Child(i)
	}
	children[childIndex+1] = newChild
	for i := childIndex + 1; i <= numKeys; i++ {
		children[i+1] = node.Child(i)
	}

	for i := 0; i < childIndex; i++ {
		keys[i] = node.Key(i)
	}
	keys[childIndex] = newKey
	for i := childIndex; i < numKeys; i++ {
		keys[i+1] = node.Key(i)
	}

	// The middle key is pushed up, not kept in either half.
	mid := (numKeys + 1) / 2
	pushUp := keys[mid]
	wasRoot := pp.IsRoot()

	// Left half rewrites the old page in place.
	for i := 0; i < mid; i++ {
		node.writeCell(i, children[i], keys[i])
	}
	node.SetRightChild(children[mid])
	node.SetNumKeys(mid)

	newInternal, err := t.pager.Allocate()
	if err != nil {
		return err
	}
	np, err := t.pager.Get(newInternal)
	if err != nil {
		return err
	}
	right := Internal(np)
	right.Init()
	rightCount := numKeys - mid
	for i := 0; i < rightCount; i++ {
		right.writeCell(i, children[mid+1+i], keys[mid+1+i])
	}
	right.SetRightChild(children[numKeys+1])
	right.SetNumKeys(rightCount)

	if wasRoot {
		leftPage, err := t.pager.Allocate()
		if err != nil {
			return err
		}
		src, err := t.pager.Get(internalPage)
		if err != nil {
			return err
		}
		tmp := *src
		dst, err := t.pager.Get(leftPage)
		if err != nil {
			return err
		}
		*dst = tmp
		dst.SetIsRoot(false)

		rp, err := t.pager.Get(internalPage)
		if err != nil {
			return err
		}
		root := Internal(rp)
		root.Init()
		rp.SetIsRoot(true)
		root.SetNumKeys(1)
		root.SetChild(0, leftPage)
		root.SetKey(0, pushUp)
		root.SetRightChild(newInternal)

		forgelog.Debug("internal root split",
			zap.Uint32("left", leftPage),
			zap.Uint32("separator", pushUp),
			zap.Uint32("right", newInternal))
		return nil
	}

	parentPage := path[len(path)-1]
	parentP, err := t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent := Internal(parentP)
	pidx, ok := findChildIndex(parent, internalPage)
	if !ok {
		return errors.Wrapf(dberrors.ErrInvariantViolation,
			"child %d not found in parent %d", internalPage, parentPage)
	}

	if parent.NumKeys() >= InternalMaxCells {
		return t.splitInternal(parentPage, pidx, pushUp, newInternal, path[:len(path)-1])
	}
	parent.InsertChild(pidx, pushUp, newInternal)
	forgelog.Debug("internal split",
		zap.Uint32("page", internalPage),
		zap.Uint32("new", newInternal),
		zap.Uint32("separator", pushUp))
	return nil
}

// findChildIndex locates childPage's slot in parent, with index numKeys
// meaning the rightmost child.
func findChildIndex(parent InternalNode, childPage uint32) (int, bool) {
	nk := parent.NumKeys()
	for i := 0; i < nk; i++ {
		if parent.cellChild(i) == childPage {
			return i, true
		}
	}
	if parent.RightChild() == childPage {
		return nk, true
	}
	return 0, false
}
