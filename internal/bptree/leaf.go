// Package bptree implements the B+Tree over slotted pages: typed node views
// enforcing the on-page layout, ordered insert with splits, delete with
// borrow/merge rebalancing, and linked-leaf scans.
//
// Leaf page layout (header 18 bytes):
//
//	[0]     1 byte   page type
//	[1]     1 byte   is_root flag
//	[2-5]   4 bytes  crc32
//	[6-9]   4 bytes  numCells
//	[10-11] 2 bytes  dataEnd (top of record area, grows down from page end)
//	[12-13] 2 bytes  totalFree
//	[14-17] 4 bytes  nextLeaf page ID (0 = tail)
//	[18+]   slot directory — [offset:2][length:2] per cell, grows up
//	        ...free space / holes...
//	        record area, grows down from the end of the page
//
// Slots are kept sorted by the id of the record they point to. Removing a
// record leaves its bytes as a hole until the next defragment.
package bptree

import (
	"encoding/binary"

	"github.com/nujra-panda/forgeDB/internal/page"
	"github.com/nujra-panda/forgeDB/internal/row"
)

const (
	offLeafNumCells  = page.HeaderSize     // uint32 @ byte 6
	offLeafDataEnd   = page.HeaderSize + 4 // uint16 @ byte 10
	offLeafTotalFree = page.HeaderSize + 6 // uint16 @ byte 12
	offLeafNext      = page.HeaderSize + 8 // uint32 @ byte 14

	// LeafHeaderSize is the full leaf header length.
	LeafHeaderSize = page.HeaderSize + 12
	// SlotSize is the per-record slot directory overhead.
	SlotSize = 4
	// LeafUsableSpace is the byte budget shared by slots and records.
	LeafUsableSpace = page.Size - LeafHeaderSize
	// LeafMinCells is the absolute occupancy floor before rebalancing.
	LeafMinCells = 2
)

// LeafNode is a stateless overlay on a leaf page frame.
type LeafNode struct {
	p *page.Page
}

// Leaf wraps a page frame as a leaf view.
func Leaf(p *page.Page) LeafNode { return LeafNode{p} }

// Init resets the leaf header. The record area is not zeroed; stale bytes
// past dataEnd are unreachable.
func (l LeafNode) Init() {
	l.p.SetType(page.KindLeaf)
	l.p.SetIsRoot(false)
	l.p.SetChecksum(0)
	l.setNumCells(0)
	l.setDataEnd(page.Size)
	l.setTotalFree(LeafUsableSpace)
	l.SetNext(0)
}

// NumCells returns the number of records on the page.
func (l LeafNode) NumCells() int {
	return int(binary.LittleEndian.Uint32(l.p[offLeafNumCells:]))
}

func (l LeafNode) setNumCells(n int) {
	binary.LittleEndian.PutUint32(l.p[offLeafNumCells:], uint32(n))
}

// DataEnd returns the lowest byte offset occupied by record data.
func (l LeafNode) DataEnd() int {
	return int(binary.LittleEndian.Uint16(l.p[offLeafDataEnd:]))
}

func (l LeafNode) setDataEnd(v int) {
	binary.LittleEndian.PutUint16(l.p[offLeafDataEnd:], uint16(v))
}

// TotalFree returns the reclaimable bytes on the page, holes included.
func (l LeafNode) TotalFree() int {
	return int(binary.LittleEndian.Uint16(l.p[offLeafTotalFree:]))
}

func (l LeafNode) setTotalFree(v int) {
	binary.LittleEndian.PutUint16(l.p[offLeafTotalFree:], uint16(v))
}

// Next returns the right sibling's page number, or 0 at the chain tail.
func (l LeafNode) Next() uint32 {
	return binary.LittleEndian.Uint32(l.p[offLeafNext:])
}

// SetNext links the right sibling.
func (l LeafNode) SetNext(n uint32) {
	binary.LittleEndian.PutUint32(l.p[offLeafNext:], n)
}

func slotPos(i int) int { return LeafHeaderSize + i*SlotSize }

// SlotOffset returns the record offset stored in slot i.
func (l LeafNode) SlotOffset(i int) int {
	return int(binary.LittleEndian.Uint16(l.p[slotPos(i):]))
}

// SlotLength returns the record length stored in slot i.
func (l LeafNode) SlotLength(i int) int {
	return int(binary.LittleEndian.Uint16(l.p[slotPos(i)+2:]))
}

func (l LeafNode) setSlot(i, off, length int) {
	binary.LittleEndian.PutUint16(l.p[slotPos(i):], uint16(off))
	binary.LittleEndian.PutUint16(l.p[slotPos(i)+2:], uint16(length))
}

// Key reads the id of the record pointed to by slot i.
func (l LeafNode) Key(i int) uint32 {
	return binary.LittleEndian.Uint32(l.p[l.SlotOffset(i):])
}

// Row decodes the record at slot i.
func (l LeafNode) Row(i int) row.Row {
	off := l.SlotOffset(i)
	return row.Deserialize(l.p[off : off+l.SlotLength(i)])
}

// CanFit reports whether a record of recordSize bytes plus its slot fits
// the page, counting holes reclaimable by defragmentation.
func (l LeafNode) CanFit(recordSize int) bool {
	return l.TotalFree() >= recordSize+SlotSize
}

// ContiguousFree returns the gap between the slot directory and the
// record area — the only space an insert can use without defragmenting.
func (l LeafNode) ContiguousFree() int {
	return l.DataEnd() - (LeafHeaderSize + l.NumCells()*SlotSize)
}

// UsedBytes returns the occupied share of the usable space.
func (l LeafNode) UsedBytes() int {
	return LeafUsableSpace - l.TotalFree()
}

// Underflow reports whether the leaf is below minimum occupancy: fewer
// than LeafMinCells records, or used bytes under half the usable space.
func (l LeafNode) Underflow() bool {
	if l.NumCells() < LeafMinCells {
		return true
	}
	return l.UsedBytes() < LeafUsableSpace/2
}

// Defragment compacts records toward the end of the page in slot order,
// eliminating holes. Total length is unchanged.
func (l LeafNode) Defragment() {
	n := l.NumCells()
	if n == 0 {
		l.setDataEnd(page.Size)
		return
	}
	var tmp page.Page
	newEnd := page.Size
	for i := 0; i < n; i++ {
		length := l.SlotLength(i)
		newEnd -= length
		copy(tmp[newEnd:], l.p[l.SlotOffset(i):l.SlotOffset(i)+length])
		l.setSlot(i, newEnd, length)
	}
	copy(l.p[newEnd:], tmp[newEnd:])
	l.setDataEnd(newEnd)
}

// search binary-searches the slot directory for key, returning the lower
// bound index and whether the key was found there.
func (l LeafNode) search(key uint32) (int, bool) {
	lo, hi := 0, l.NumCells()
	for lo < hi {
		mid := (lo + hi) / 2
		if l.Key(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < l.NumCells() && l.Key(lo) == key
}

// Insert writes the row in sorted position. The caller must have checked
// CanFit first.
func (l LeafNode) Insert(key uint32, r row.Row) {
	n := l.NumCells()
	var buf [row.MaxEncoded]byte
	recSize := row.Serialize(r, buf[:])

	idx, _ := l.search(key)

	if l.ContiguousFree() < recSize+SlotSize {
		l.Defragment()
	}

	newEnd := l.DataEnd() - recSize
	copy(l.p[newEnd:], buf[:recSize])
	l.setDataEnd(newEnd)

	for i := n; i > idx; i-- {
		l.setSlot(i, l.SlotOffset(i-1), l.SlotLength(i-1))
	}
	l.setSlot(idx, newEnd, recSize)

	l.setNumCells(n + 1)
	l.setTotalFree(l.TotalFree() - recSize - SlotSize)
}

// RemoveAt drops slot idx. The record bytes stay as a hole until the next
// Defragment.
func (l LeafNode) RemoveAt(idx int) {
	n := l.NumCells()
	freed := l.SlotLength(idx)
	for i := idx; i < n-1; i++ {
		l.setSlot(i, l.SlotOffset(i+1), l.SlotLength(i+1))
	}
	l.setNumCells(n - 1)
	l.setTotalFree(l.TotalFree() + freed + SlotSize)
}

// Remove deletes the record with the given key, reporting whether it was
// present.
func (l LeafNode) Remove(key uint32) bool {
	idx, found := l.search(key)
	if !found {
		return false
	}
	l.RemoveAt(idx)
	return true
}
