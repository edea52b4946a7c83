package bptree

import (
	"encoding/binary"

	"github.com/nujra-panda/forgeDB/internal/page"
)

// Internal page layout (header 14 bytes):
//
//	[0]     1 byte   page type
//	[1]     1 byte   is_root flag
//	[2-5]   4 bytes  crc32
//	[6-9]   4 bytes  numKeys
//	[10-13] 4 bytes  rightChild page ID
//	[14+]   cells — [child:4][key:4] each
//
// A child at index i lies at cell i for i < numKeys, else at rightChild.
// The separator key at index i bounds the subtree rooted at the child to
// its right.
const (
	offInternalNumKeys    = page.HeaderSize     // uint32 @ byte 6
	offInternalRightChild = page.HeaderSize + 4 // uint32 @ byte 10

	// InternalHeaderSize is the full internal-node header length.
	InternalHeaderSize = page.HeaderSize + 8
	// InternalCellSize is the [child:4][key:4] pair length.
	InternalCellSize = 8
	// InternalMaxCells caps the keys an internal node holds.
	InternalMaxCells = (page.Size - InternalHeaderSize) / InternalCellSize
	// InternalMinKeys is the underflow threshold for rebalancing.
	InternalMinKeys = InternalMaxCells / 2
)

// InternalNode is a stateless overlay on an internal page frame.
type InternalNode struct {
	p *page.Page
}

// Internal wraps a page frame as an internal-node view.
func Internal(p *page.Page) InternalNode { return InternalNode{p} }

// Init resets the internal-node header.
func (n InternalNode) Init() {
	n.p.SetType(page.KindInternal)
	n.p.SetIsRoot(false)
	n.p.SetChecksum(0)
	n.SetNumKeys(0)
	n.SetRightChild(0)
}

// NumKeys returns the number of separator keys.
func (n InternalNode) NumKeys() int {
	return int(binary.LittleEndian.Uint32(n.p[offInternalNumKeys:]))
}

// SetNumKeys writes the key count.
func (n InternalNode) SetNumKeys(v int) {
	binary.LittleEndian.PutUint32(n.p[offInternalNumKeys:], uint32(v))
}

// RightChild returns the rightmost child page.
func (n InternalNode) RightChild() uint32 {
	return binary.LittleEndian.Uint32(n.p[offInternalRightChild:])
}

// SetRightChild writes the rightmost child page.
func (n InternalNode) SetRightChild(pg uint32) {
	binary.LittleEndian.PutUint32(n.p[offInternalRightChild:], pg)
}

func cellPos(i int) int { return InternalHeaderSize + i*InternalCellSize }

// cellChild reads the child pointer of cell i, regardless of numKeys.
func (n InternalNode) cellChild(i int) uint32 {
	return binary.LittleEndian.Uint32(n.p[cellPos(i):])
}

func (n InternalNode) setCellChild(i int, pg uint32) {
	binary.LittleEndian.PutUint32(n.p[cellPos(i):], pg)
}

// Key returns the separator key of cell i.
func (n InternalNode) Key(i int) uint32 {
	return binary.LittleEndian.Uint32(n.p[cellPos(i)+4:])
}

// SetKey writes the separator key of cell i.
func (n InternalNode) SetKey(i int, key uint32) {
	binary.LittleEndian.PutUint32(n.p[cellPos(i)+4:], key)
}

// writeCell stores both halves of cell i.
func (n InternalNode) writeCell(i int, child, key uint32) {
	n.setCellChild(i, child)
	n.SetKey(i, key)
}

// copyCell copies cell src into cell dst.
func (n InternalNode) copyCell(dst, src int) {
	copy(n.p[cellPos(dst):cellPos(dst)+InternalCellSize],
		n.p[cellPos(src):cellPos(src)+InternalCellSize])
}

// Child resolves index i to a child page: cell i when i < numKeys, else
// the rightmost child.
func (n InternalNode) Child(i int) uint32 {
	if i == n.NumKeys() {
		return n.RightChild()
	}
	return n.cellChild(i)
}

// SetChild is the write-side counterpart of Child.
func (n InternalNode) SetChild(i int, pg uint32) {
	if i == n.NumKeys() {
		n.SetRightChild(pg)
	} else {
		n.setCellChild(i, pg)
	}
}

// FindChild returns the child page where key belongs: the lowest index j
// with Key(j) > key, resolving j == numKeys to the rightmost child. Equal
// keys descend into the right subtree.
func (n InternalNode) FindChild(key uint32) uint32 {
	lo, hi := 0, n.NumKeys()
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Key(mid) <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return n.Child(lo)
}

// InsertChild splices (key, newChild) so that newChild becomes the child
// immediately to the right of the key at index. The caller guarantees the
// node is not full.
func (n InternalNode) InsertChild(index int, key uint32, newChild uint32) {
	num := n.NumKeys()

	if index == num {
		// Right edge: promote the old rightChild into the last cell.
		n.writeCell(num, n.RightChild(), key)
		n.SetRightChild(newChild)
	} else {
		// Middle: shift cells right to open the slot after index, then
		// splice the new pair there with the previous separator preserved
		// to its right.
		for i := num; i >= index+2; i-- {
			n.copyCell(i, i-1)
		}
		keyOld := n.Key(index)
		n.SetKey(index, key)
		n.writeCell(index+1, newChild, keyOld)
	}
	n.SetNumKeys(num + 1)
}

// RemoveKey drops the key at keyIndex and the child to its right.
func (n InternalNode) RemoveKey(keyIndex int) {
	num := n.NumKeys()

	if keyIndex == num-1 {
		// Removing the last key: its left child becomes the new rightChild.
		n.SetRightChild(n.cellChild(keyIndex))
		n.SetNumKeys(num - 1)
		return
	}

	// Save the left child (the merged node), shift cells left, restore it.
	mergedChild := n.cellChild(keyIndex)
	for i := keyIndex; i < num-1; i++ {
		n.copyCell(i, i+1)
	}
	n.setCellChild(keyIndex, mergedChild)
	n.SetNumKeys(num - 1)
}
