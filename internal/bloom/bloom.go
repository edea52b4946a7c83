// Package bloom implements the probabilistic negative-lookup index stored
// on page 0 after the file header. The filter is a borrowed view into the
// pinned page-0 frame, so every bit set reaches disk with the header page.
//
// Layout of page 0:
//
//	[file header: 20 bytes][bloom bit array: 4076 bytes (32 608 bits)]
//
// There is no remove operation; stale bits from deletes persist until the
// next Rebuild, which keeps the invariant at "no false negatives".
package bloom

import (
	"math"
	"math/bits"

	"github.com/nujra-panda/forgeDB/internal/metrics"
	"github.com/nujra-panda/forgeDB/internal/page"
)

const (
	// Offset is where the bit array starts on page 0.
	Offset = 20
	// ByteSize is the length of the bit array in bytes.
	ByteSize = page.Size - Offset
	// Bits is the number of addressable filter bits.
	Bits = ByteSize * 8
)

// Filter is a view over the page-0 bit array. It must never outlive the
// pinned page-0 frame it was attached to.
type Filter struct {
	bitsArr []byte
}

// Attach points the filter at the bloom area of the page-0 frame.
func Attach(p0 *page.Page) *Filter {
	return &Filter{bitsArr: p0[Offset:]}
}

// Three independent multiplicative hashes over the key, each reduced
// modulo the bit count.
func hash1(k uint32) uint32 { return uint32(uint64(k) * 2654435761 % Bits) }
func hash2(k uint32) uint32 { return uint32(uint64(k) * 0x85EBCA6B % Bits) }
func hash3(k uint32) uint32 { return uint32(uint64(k^(k>>16)) * 0xCC9E2D51 % Bits) }

func (f *Filter) setBit(pos uint32) { f.bitsArr[pos/8] |= 1 << (pos % 8) }
func (f *Filter) getBit(pos uint32) bool {
	return f.bitsArr[pos/8]&(1<<(pos%8)) != 0
}

// Add marks key as present.
func (f *Filter) Add(key uint32) {
	f.setBit(hash1(key))
	f.setBit(hash2(key))
	f.setBit(hash3(key))
}

// PossiblyContains returns false only when key is definitely absent;
// true means the tree must be consulted.
func (f *Filter) PossiblyContains(key uint32) bool {
	return f.getBit(hash1(key)) && f.getBit(hash2(key)) && f.getBit(hash3(key))
}

// Clear zeroes the bit array.
func (f *Filter) Clear() {
	for i := range f.bitsArr {
		f.bitsArr[i] = 0
	}
}

// Stats describes the filter's current saturation.
type Stats struct {
	SizeBytes int
	Bits      int
	BitsSet   int
	Fill      float64 // fraction of bits set
	EstFPR    float64 // fill^3, the three-hash false-positive estimate
}

// Stats counts the set bits and updates the fill-ratio gauge.
func (f *Filter) Stats() Stats {
	set := 0
	for _, b := range f.bitsArr {
		set += bits.OnesCount8(b)
	}
	fill := float64(set) / float64(Bits)
	metrics.BloomFillRatio.Set(fill)
	return Stats{
		SizeBytes: ByteSize,
		Bits:      Bits,
		BitsSet:   set,
		Fill:      fill,
		EstFPR:    math.Pow(fill, 3),
	}
}
