package bptree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nujra-panda/forgeDB/internal/page"
	"github.com/nujra-panda/forgeDB/internal/row"
)

func testRow(id uint32) row.Row {
	return row.Row{ID: id, Username: fmt.Sprintf("user%d", id), Email: fmt.Sprintf("user%d@example.com", id)}
}

func requireSpaceAccounting(t *testing.T, l LeafNode) {
	t.Helper()
	sum := 0
	for i := 0; i < l.NumCells(); i++ {
		sum += l.SlotLength(i) + SlotSize
	}
	require.Equal(t, LeafUsableSpace-sum, l.TotalFree())
	require.GreaterOrEqual(t, l.DataEnd(), LeafHeaderSize+l.NumCells()*SlotSize)
}

func TestLeafInsertKeepsSortedOrder(t *testing.T) {
	var p page.Page
	l := Leaf(&p)
	l.Init()

	for _, id := range []uint32{50, 10, 30, 20, 40} {
		l.Insert(id, testRow(id))
	}

	require.Equal(t, 5, l.NumCells())
	for i, want := range []uint32{10, 20, 30, 40, 50} {
		assert.Equal(t, want, l.Key(i))
		assert.Equal(t, testRow(want), l.Row(i))
	}
	requireSpaceAccounting(t, l)
}

func TestLeafRemoveLeavesHoleUntilDefragment(t *testing.T) {
	var p page.Page
	l := Leaf(&p)
	l.Init()

	for id := uint32(1); id <= 5; id++ {
		l.Insert(id, testRow(id))
	}
	dataEnd := l.DataEnd()

	require.True(t, l.Remove(3))
	assert.False(t, l.Remove(3))

	// Record bytes stay put; only the slot directory and accounting move.
	assert.Equal(t, dataEnd, l.DataEnd())
	assert.Equal(t, 4, l.NumCells())
	requireSpaceAccounting(t, l)

	freeBefore := l.TotalFree()
	l.Defragment()
	assert.Equal(t, freeBefore, l.TotalFree())
	assert.Equal(t, l.DataEnd(), page.Size-(l.UsedBytes()-l.NumCells()*SlotSize))
	for i, want := range []uint32{1, 2, 4, 5} {
		assert.Equal(t, want, l.Key(i))
		assert.Equal(t, testRow(want), l.Row(i))
	}
}

func TestLeafInsertDefragmentsWhenFragmented(t *testing.T) {
	var p page.Page
	l := Leaf(&p)
	l.Init()

	// Fill the page, then punch holes so total free is plentiful but
	// contiguous free is not.
	big := row.Row{ID: 0, Username: "uuuuuuuuuuuuuuuuuuuuuuuuuuuuuuu",
		Email: "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee@example.com"}
	id := uint32(1)
	for {
		big.ID = id
		if !l.CanFit(row.Size(big)) {
			break
		}
		l.Insert(id, big)
		id += 2
	}
	for k := uint32(3); k < id; k += 4 {
		require.True(t, l.Remove(k))
	}
	dataEndBefore := l.DataEnd()

	// Two more inserts shrink the contiguous gap below one record, so the
	// second one has to defragment before it can land.
	for _, newID := range []uint32{2, 4} {
		big.ID = newID
		require.True(t, l.CanFit(row.Size(big)))
		l.Insert(newID, big)
	}

	assert.Greater(t, l.DataEnd(), dataEndBefore, "defragment must have compacted the record area")
	assert.Equal(t, uint32(1), l.Key(0))
	assert.Equal(t, uint32(2), l.Key(1))
	assert.Equal(t, uint32(4), l.Key(2))
	requireSpaceAccounting(t, l)
}

func TestLeafUnderflow(t *testing.T) {
	var p page.Page
	l := Leaf(&p)
	l.Init()

	assert.True(t, l.Underflow(), "empty leaf underflows")

	l.Insert(1, testRow(1))
	assert.True(t, l.Underflow(), "single cell underflows")

	l.Insert(2, testRow(2))
	// Two small cells: above the cell floor but under half the bytes.
	assert.True(t, l.Underflow())
}

func TestLeafCanFit(t *testing.T) {
	var p page.Page
	l := Leaf(&p)
	l.Init()

	assert.True(t, l.CanFit(LeafUsableSpace-SlotSize))
	assert.False(t, l.CanFit(LeafUsableSpace-SlotSize+1))
}

// buildInternal assembles an internal node with the given cells and
// rightmost child directly through the raw accessors.
func buildInternal(p *page.Page, children []uint32, keys []uint32, right uint32) InternalNode {
	n := Internal(p)
	n.Init()
	for i := range keys {
		n.writeCell(i, children[i], keys[i])
	}
	n.SetRightChild(right)
	n.SetNumKeys(len(keys))
	return n
}

func internalShape(n InternalNode) (children []uint32, keys []uint32) {
	for i := 0; i < n.NumKeys(); i++ {
		children = append(children, n.cellChild(i))
		keys = append(keys, n.Key(i))
	}
	children = append(children, n.RightChild())
	return
}

func TestInternalFindChild(t *testing.T) {
	var p page.Page
	n := buildInternal(&p, []uint32{100, 200, 300}, []uint32{10, 20, 30}, 400)

	assert.Equal(t, uint32(100), n.FindChild(5))
	// Equal keys descend into the right subtree.
	assert.Equal(t, uint32(200), n.FindChild(10))
	assert.Equal(t, uint32(300), n.FindChild(25))
	assert.Equal(t, uint32(400), n.FindChild(30))
	assert.Equal(t, uint32(400), n.FindChild(99))
}

func TestInternalInsertChildRightEdge(t *testing.T) {
	var p page.Page
	n := buildInternal(&p, []uint32{100, 200}, []uint32{10, 20}, 300)

	n.InsertChild(2, 30, 400)

	children, keys := internalShape(n)
	assert.Equal(t, []uint32{100, 200, 300, 400}, children)
	assert.Equal(t, []uint32{10, 20, 30}, keys)
}

func TestInternalInsertChildMiddle(t *testing.T) {
	var p page.Page
	n := buildInternal(&p, []uint32{100, 200, 300}, []uint32{10, 20, 30}, 400)

	// Child 200 split: new sibling 250 goes immediately to its right,
	// separated by 15.
	n.InsertChild(1, 15, 250)

	children, keys := internalShape(n)
	assert.Equal(t, []uint32{100, 200, 250, 300, 400}, children)
	assert.Equal(t, []uint32{10, 15, 20, 30}, keys)
}

func TestInternalInsertChildBeforeLastKey(t *testing.T) {
	var p page.Page
	n := buildInternal(&p, []uint32{100, 200, 300}, []uint32{10, 20, 30}, 400)

	n.InsertChild(2, 25, 350)

	children, keys := internalShape(n)
	assert.Equal(t, []uint32{100, 200, 300, 350, 400}, children)
	assert.Equal(t, []uint32{10, 20, 25, 30}, keys)
}

func TestInternalRemoveKey(t *testing.T) {
	var p page.Page
	n := buildInternal(&p, []uint32{100, 200, 300}, []uint32{10, 20, 30}, 400)

	// Remove key 20 and the child to its right (300).
	n.RemoveKey(1)
	children, keys := internalShape(n)
	assert.Equal(t, []uint32{100, 200, 400}, children)
	assert.Equal(t, []uint32{10, 30}, keys)

	// Remove the last key: its left child becomes the right child.
	n.RemoveKey(1)
	children, keys = internalShape(n)
	assert.Equal(t, []uint32{100, 200}, children)
	assert.Equal(t, []uint32{10}, keys)
}
