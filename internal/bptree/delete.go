package bptree

import (
	"go.uber.org/zap"

	"github.com/cockroachdb/errors"

	"github.com/nujra-panda/forgeDB/internal/dberrors"
	"github.com/nujra-panda/forgeDB/internal/forgelog"
)

// Remove deletes the row with the given id, rebalancing the leaf when it
// underflows. Returns the leaf page the key was removed from. A bloom
// negative answer short-circuits without touching the tree.
func (t *BTree) Remove(id uint32) (uint32, error) {
	if !t.bloom.PossiblyContains(id) {
		return 0, errors.Wrap(dberrors.KeyNotFound(id), "bloom definite negative")
	}

	leafPage, path, err := t.find(id)
	if err != nil {
		return 0, err
	}
	pp, err := t.pager.Get(leafPage)
	if err != nil {
		return 0, err
	}
	leaf := Leaf(pp)
	wasFirst := leaf.NumCells() > 0 && leaf.Key(0) == id

	if !leaf.Remove(id) {
		// Bloom false positive.
		return 0, dberrors.KeyNotFound(id)
	}

	// Removing the first key changes the smallest key of the leaf's subtree:
	// the nearest ancestor separator to the leaf's left tracks the new one.
	if wasFirst && leaf.NumCells() > 0 {
		for i, child := len(path)-1, leafPage; i >= 0; child, i = path[i], i-1 {
			ap, err := t.pager.Get(path[i])
			if err != nil {
				return 0, err
			}
			if ci, _ := findChildIndex(Internal(ap), child); ci > 0 {
				Internal(ap).SetKey(ci-1, leaf.Key(0))
				break
			}
		}
	}

	// The root leaf has no minimum occupancy constraint.
	if pp.IsRoot() || !leaf.Underflow() {
		return leafPage, nil
	}
	return leafPage, t.rebalanceLeaf(leafPage, path)
}

// rebalanceLeaf restores minimum occupancy: borrow from the left sibling,
// else from the right, else merge with a sibling and free a page.
func (t *BTree) rebalanceLeaf(pageNum uint32, path []uint32) error {
	parentPage := path[len(path)-1]
	parentP, err := t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent := Internal(parentP)
	pp, err := t.pager.Get(pageNum)
	if err != nil {
		return err
	}
	leaf := Leaf(pp)

	childIndex, ok := findChildIndex(parent, pageNum)
	if !ok {
		return errors.Wrapf(dberrors.ErrInvariantViolation,
			"child %d not found in parent %d", pageNum, parentPage)
	}
	numKeys := parent.NumKeys()

	// Borrow from the LEFT sibling: take its rightmost row, then the
	// separator to our left becomes our new first key.
	if childIndex > 0 {
		leftPage := parent.Child(childIndex - 1)
		lp, err := t.pager.Get(leftPage)
		if err != nil {
			return err
		}
		leftSib := Leaf(lp)

		if !leftSib.Underflow() && leftSib.NumCells() > LeafMinCells {
			ln := leftSib.NumCells()
			borrowed := leftSib.Row(ln - 1)
			leaf.Insert(borrowed.ID, borrowed)
			leftSib.RemoveAt(ln - 1)

			parent.SetKey(childIndex-1, leaf.Key(0))
			forgelog.Debug("leaf borrow-left", zap.Uint32("from", leftPage), zap.Uint32("into", pageNum))
			return nil
		}
	}

	// Borrow from the RIGHT sibling: take its first row, then the
	// separator to our right tracks its new first key.
	if childIndex < numKeys {
		rightPage := parent.Child(childIndex + 1)
		rp, err := t.pager.Get(rightPage)
		if err != nil {
			return err
		}
		rightSib := Leaf(rp)

		if !rightSib.Underflow() && rightSib.NumCells() > LeafMinCells {
			borrowed := rightSib.Row(0)
			leaf.Insert(borrowed.ID, borrowed)
			rightSib.RemoveAt(0)

			parent.SetKey(childIndex, rightSib.Key(0))
			forgelog.Debug("leaf borrow-right", zap.Uint32("from", rightPage), zap.Uint32("into", pageNum))
			return nil
		}
	}

	// Cannot borrow — merge. Prefer merging into the left sibling.
	if childIndex > 0 {
		leftPage := parent.Child(childIndex - 1)
		return t.mergeLeaves(leftPage, pageNum, parentPage, childIndex-1, path)
	}
	rightPage := parent.Child(childIndex + 1)
	return t.mergeLeaves(pageNum, rightPage, parentPage, childIndex, path)
}

// mergeLeaves folds the right leaf into the left one, splices the sibling
// chain past the freed page, and removes the separator from the parent.
func (t *BTree) mergeLeaves(leftPage, rightPage, parentPage uint32, sepIdx int, path []uint32) error {
	lp, err := t.pager.Get(leftPage)
	if err != nil {
		return err
	}
	left := Leaf(lp)
	rp, err := t.pager.Get(rightPage)
	if err != nil {
		return err
	}
	right := Leaf(rp)

	rn := right.NumCells()
	for i := 0; i < rn; i++ {
		rr := right.Row(i)
		left.Insert(rr.ID, rr)
	}
	left.SetNext(right.Next())

	if err := t.pager.FreePage(rightPage); err != nil {
		return err
	}
	forgelog.Debug("merged leaves",
		zap.Uint32("left", leftPage),
		zap.Uint32("freed", rightPage))

	parentP, err := t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent := Internal(parentP)
	parent.RemoveKey(sepIdx)

	return t.afterParentShrunk(parentPage, path)
}

// afterParentShrunk handles a parent that just lost a key: collapse the
// root when it runs empty, or recurse upward when a non-root parent is in
// underflow.
func (t *BTree) afterParentShrunk(parentPage uint32, path []uint32) error {
	parentP, err := t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent := Internal(parentP)

	if parentP.IsRoot() && parent.NumKeys() == 0 {
		// Copy the sole remaining child onto the root page so the root
		// stays at page 1; the tree loses one level.
		onlyChild := parent.RightChild()
		cp, err := t.pager.Get(onlyChild)
		if err != nil {
			return err
		}
		tmp := *cp
		rp, err := t.pager.Get(parentPage)
		if err != nil {
			return err
		}
		*rp = tmp
		rp.SetIsRoot(true)
		if err := t.pager.FreePage(onlyChild); err != nil {
			return err
		}
		forgelog.Debug("root collapsed", zap.Uint32("freed", onlyChild))
		return nil
	}

	if !parentP.IsRoot() && parent.NumKeys() < InternalMinKeys {
		return t.rebalanceInternal(parentPage, path[:len(path)-1])
	}
	return nil
}

// rebalanceInternal restores minimum occupancy on an internal node.
// Borrowing rotates the parent separator down and a sibling key up;
// merging pulls the separator down between the two halves.
func (t *BTree) rebalanceInternal(pageNum uint32, path []uint32) error {
	if len(path) == 0 {
		return nil
	}

	parentPage := path[len(path)-1]
	parentP, err := t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent := Internal(parentP)
	pp, err := t.pager.Get(pageNum)
	if err != nil {
		return err
	}
	current := Internal(pp)

	childIndex, ok := findChildIndex(parent, pageNum)
	if !ok {
		return errors.Wrapf(dberrors.ErrInvariantViolation,
			"child %d not found in parent %d", pageNum, parentPage)
	}
	numKeys := parent.NumKeys()

	// Borrow from the LEFT sibling: parent separator rotates down into
	// position 0 here, the sibling's last key rotates up into the parent,
	// and the sibling's old rightChild becomes our leftmost child.
	if childIndex > 0 {
		leftPage := parent.Child(childIndex - 1)
		lp, err := t.pager.Get(leftPage)
		if err != nil {
			return err
		}
		leftSib := Internal(lp)

		if leftSib.NumKeys() > InternalMinKeys {
			sep := childIndex - 1
			parentKey := parent.Key(sep)

			ln := leftSib.NumKeys()
			borrowedChild := leftSib.RightChild()
			borrowedKey := leftSib.Key(ln - 1)
			leftSib.SetRightChild(leftSib.cellChild(ln - 1))
			leftSib.SetNumKeys(ln - 1)

			cn := current.NumKeys()
			for i := cn - 1; i >= 0; i-- {
				current.copyCell(i+1, i)
			}
			current.writeCell(0, borrowedChild, parentKey)
			current.SetNumKeys(cn + 1)

			parent.SetKey(sep, borrowedKey)
			forgelog.Debug("internal borrow-left", zap.Uint32("from", leftPage), zap.Uint32("into", pageNum))
			return nil
		}
	}

	// Borrow from the RIGHT sibling, symmetrically.
	if childIndex < numKeys {
		rightPage := parent.Child(childIndex + 1)
		rp, err := t.pager.Get(rightPage)
		if err != nil {
			return err
		}
		rightSib := Internal(rp)

		if rightSib.NumKeys() > InternalMinKeys {
			sep := childIndex
			parentKey := parent.Key(sep)

			borrowedChild := rightSib.cellChild(0)
			borrowedKey := rightSib.Key(0)
			rn := rightSib.NumKeys()
			for i := 0; i < rn-1; i++ {
				rightSib.copyCell(i, i+1)
			}
			rightSib.SetNumKeys(rn - 1)

			cn := current.NumKeys()
			current.writeCell(cn, current.RightChild(), parentKey)
			current.SetRightChild(borrowedChild)
			current.SetNumKeys(cn + 1)

			parent.SetKey(sep, borrowedKey)
			forgelog.Debug("internal borrow-right", zap.Uint32("from", rightPage), zap.Uint32("into", pageNum))
			return nil
		}
	}

	// Must merge internal nodes.
	if childIndex > 0 {
		leftPage := parent.Child(childIndex - 1)
		return t.mergeInternals(leftPage, pageNum, parentPage, childIndex-1, path)
	}
	rightPage := parent.Child(childIndex + 1)
	return t.mergeInternals(pageNum, rightPage, parentPage, childIndex, path)
}

// mergeInternals folds the right node into the left one with the parent
// separator pulled down between them, then frees the right page.
func (t *BTree) mergeInternals(leftPage, rightPage, parentPage uint32, sepIdx int, path []uint32) error {
	lp, err := t.pager.Get(leftPage)
	if err != nil {
		return err
	}
	left := Internal(lp)
	rp, err := t.pager.Get(rightPage)
	if err != nil {
		return err
	}
	right := Internal(rp)
	parentP, err := t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent := Internal(parentP)

	separator := parent.Key(sepIdx)
	ln := left.NumKeys()
	rn := right.NumKeys()

	// Pull the separator down, then append all of right's cells.
	left.writeCell(ln, left.RightChild(), separator)
	for i := 0; i < rn; i++ {
		left.writeCell(ln+1+i, right.cellChild(i), right.Key(i))
	}
	left.SetRightChild(right.RightChild())
	left.SetNumKeys(ln + 1 + rn)

	if err := t.pager.FreePage(rightPage); err != nil {
		return err
	}
	forgelog.Debug("merged internals",
		zap.Uint32("left", leftPage),
		zap.Uint32("freed", rightPage))

	parentP, err = t.pager.Get(parentPage)
	if err != nil {
		return err
	}
	parent = Internal(parentP)
	parent.RemoveKey(sepIdx)

	return t.afterParentShrunk(parentPage, path)
}
