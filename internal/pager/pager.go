// Package pager implements the single-file buffer pool: an LRU cache of
// fixed-size page frames over the database file, with pin counts, a
// free-page list, CRC stamping on flush, and file-header persistence.
//
// All byte I/O goes through the Pager. A frame returned by Get stays valid
// for the duration of a single operation; pages touched by the current
// operation sit at the MRU end of the list and are never eviction victims
// as long as BufferPoolSize exceeds the pages one operation touches.
package pager

import (
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/nujra-panda/forgeDB/internal/dberrors"
	"github.com/nujra-panda/forgeDB/internal/forgelog"
	"github.com/nujra-panda/forgeDB/internal/metrics"
	"github.com/nujra-panda/forgeDB/internal/page"
)

const (
	// BufferPoolSize is the maximum number of frames held in RAM.
	// Must be ≥ tree height + max pages touched per operation (~10).
	BufferPoolSize = 100

	// Magic identifies a database file.
	Magic = uint32(0xF04DB)

	// headerSize is the byte length of the serialized file header on page 0.
	headerSize = 20

	// offFreeNext is where a free page stores the next free-list entry —
	// after the common header so it never overlaps the CRC slot.
	offFreeNext = page.HeaderSize
)

// Header is the file header stored in the first bytes of page 0.
type Header struct {
	Magic         uint32
	PageSize      uint32
	TotalPages    uint32
	FreePages     uint32
	FirstFreePage uint32
}

// Stats is a snapshot of the buffer pool counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Frames    int
	Pinned    int
}

// HitRatio returns the cache hit fraction, or 0 before any access.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type frame struct {
	pageNum uint32
	page    *page.Page
	prev    *frame
	next    *frame
}

// Pager owns the file handle and every in-RAM page frame.
type Pager struct {
	file    *os.File
	fileLen int64
	hdr     Header

	frames map[uint32]*frame
	head   *frame // MRU
	tail   *frame // LRU
	pins   map[uint32]int

	hits      uint64
	misses    uint64
	evictions uint64
}

// Open opens (or creates) the database file. An empty file gets a fresh
// header; an existing one must carry a valid magic. Page 0 is pinned for
// the lifetime of the Pager.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "pager open")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "pager stat")
	}

	p := &Pager{
		file:    f,
		fileLen: info.Size(),
		frames:  make(map[uint32]*frame, BufferPoolSize),
		pins:    make(map[uint32]int),
	}

	if p.fileLen == 0 {
		p.hdr = Header{Magic: Magic, PageSize: page.Size, TotalPages: 1}
		if err := p.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		if err := p.Flush(page.HeaderPage); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		pg, err := p.Get(page.HeaderPage)
		if err != nil {
			f.Close()
			return nil, err
		}
		p.hdr = decodeHeader(pg)
		if p.hdr.Magic != Magic {
			f.Close()
			return nil, dberrors.CorruptHeader(p.hdr.Magic)
		}
	}

	// Header + bloom filter stay resident.
	p.Pin(page.HeaderPage)
	return p, nil
}

// Get returns the frame for pageNum, reading it from disk on a miss.
// The returned pointer is stable until a later Get triggers eviction.
func (p *Pager) Get(pageNum uint32) (*page.Page, error) {
	if fr, ok := p.frames[pageNum]; ok {
		p.hits++
		metrics.PagerHits.Inc()
		p.moveToFront(fr)
		return fr.page, nil
	}

	p.misses++
	metrics.PagerMisses.Inc()

	for len(p.frames) >= BufferPoolSize {
		if err := p.evictLRU(); err != nil {
			return nil, err
		}
	}

	pg := new(page.Page)
	filePages := uint32((p.fileLen + page.Size - 1) / page.Size)
	if pageNum < filePages {
		if _, err := p.file.ReadAt(pg[:], int64(pageNum)*page.Size); err != nil &&
			err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(err, "read page %d", pageNum)
		}
		// Verify CRC32 for tree pages (skip header page 0 and freed pages).
		if pageNum > page.HeaderPage && pg.IsTreePage() {
			if ok, stored, computed := page.VerifyCRC32(pg); !ok {
				forgelog.Warn("crc32 mismatch",
					zap.Uint32("page", pageNum),
					zap.Uint32("stored", stored),
					zap.Uint32("computed", computed))
			}
		}
	}

	fr := &frame{pageNum: pageNum, page: pg}
	p.frames[pageNum] = fr
	p.pushFront(fr)
	metrics.PoolFramesInUse.Set(float64(len(p.frames)))
	return pg, nil
}

// Flush stamps the CRC into tree pages and writes the frame to disk.
// Free pages and page 0 are written without a CRC.
func (p *Pager) Flush(pageNum uint32) error {
	fr, ok := p.frames[pageNum]
	if !ok {
		return nil
	}
	if pageNum > page.HeaderPage && fr.page.IsTreePage() {
		page.StampCRC32(fr.page)
	}
	if _, err := p.file.WriteAt(fr.page[:], int64(pageNum)*page.Size); err != nil {
		return errors.Wrapf(err, "write page %d", pageNum)
	}
	// Track file growth so re-reads after eviction find the data.
	if end := int64(pageNum+1) * page.Size; end > p.fileLen {
		p.fileLen = end
	}
	return nil
}

// evictLRU walks from the LRU end toward MRU and evicts the first unpinned
// frame, flushing it first. All frames pinned means the pool is exhausted.
func (p *Pager) evictLRU() error {
	for fr := p.tail; fr != nil; fr = fr.prev {
		if p.pins[fr.pageNum] > 0 {
			continue
		}
		if err := p.Flush(fr.pageNum); err != nil {
			return err
		}
		p.unlink(fr)
		delete(p.frames, fr.pageNum)
		p.evictions++
		metrics.PagerEvictions.Inc()
		metrics.PoolFramesInUse.Set(float64(len(p.frames)))
		return nil
	}
	forgelog.Warn("buffer pool exhausted", zap.Int("frames", len(p.frames)))
	return errors.Wrapf(dberrors.ErrPoolExhausted, "all %d frames pinned", len(p.frames))
}

// Pin increments pageNum's pin count, excluding it from eviction.
func (p *Pager) Pin(pageNum uint32) { p.pins[pageNum]++ }

// Unpin decrements the pin count; at zero the page becomes evictable again.
func (p *Pager) Unpin(pageNum uint32) {
	if c, ok := p.pins[pageNum]; ok {
		if c <= 1 {
			delete(p.pins, pageNum)
		} else {
			p.pins[pageNum] = c - 1
		}
	}
}

// IsPinned reports whether the page currently has a nonzero pin count.
func (p *Pager) IsPinned(pageNum uint32) bool { return p.pins[pageNum] > 0 }

// Allocate returns a usable page number: the free-list head if one exists,
// otherwise a fresh page extending the file.
func (p *Pager) Allocate() (uint32, error) {
	if p.hdr.FirstFreePage != 0 {
		reused := p.hdr.FirstFreePage
		pg, err := p.Get(reused)
		if err != nil {
			return 0, err
		}
		next := binary.LittleEndian.Uint32(pg[offFreeNext : offFreeNext+4])
		*pg = page.Page{}
		p.hdr.FirstFreePage = next
		p.hdr.FreePages--
		if err := p.writeHeader(); err != nil {
			return 0, err
		}
		forgelog.Debug("reused free page", zap.Uint32("page", reused))
		return reused, nil
	}

	newPage := p.hdr.TotalPages
	p.hdr.TotalPages++
	if err := p.writeHeader(); err != nil {
		return 0, err
	}
	return newPage, nil
}

// FreePage zeroes the page, marks it FREE, and pushes it onto the free
// list. Pages 0 and 1 can never be freed.
func (p *Pager) FreePage(pageNum uint32) error {
	if pageNum <= page.RootPage {
		return dberrors.FreeForbidden(pageNum)
	}
	pg, err := p.Get(pageNum)
	if err != nil {
		return err
	}
	*pg = page.Page{}
	pg.SetType(page.KindFree)
	binary.LittleEndian.PutUint32(pg[offFreeNext:offFreeNext+4], p.hdr.FirstFreePage)
	p.hdr.FirstFreePage = pageNum
	p.hdr.FreePages++
	return p.writeHeader()
}

// Close persists the header, flushes every pooled frame in page order, and
// closes the file.
func (p *Pager) Close() error {
	if err := p.writeHeader(); err != nil {
		return err
	}
	nums := make([]uint32, 0, len(p.frames))
	for n := range p.frames {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, n := range nums {
		if err := p.Flush(n); err != nil {
			return err
		}
	}
	return p.file.Close()
}

// Header returns a copy of the current file header.
func (p *Pager) Header() Header { return p.hdr }

// TotalPages returns the number of pages ever allocated, including page 0.
func (p *Pager) TotalPages() uint32 { return p.hdr.TotalPages }

// Stats returns a snapshot of the pool counters.
func (p *Pager) Stats() Stats {
	return Stats{
		Hits:      p.hits,
		Misses:    p.misses,
		Evictions: p.evictions,
		Frames:    len(p.frames),
		Pinned:    len(p.pins),
	}
}

// FreeList walks the free-page chain from the header and returns it in
// order.
func (p *Pager) FreeList() ([]uint32, error) {
	var list []uint32
	for n := p.hdr.FirstFreePage; n != 0; {
		list = append(list, n)
		pg, err := p.Get(n)
		if err != nil {
			return list, err
		}
		n = binary.LittleEndian.Uint32(pg[offFreeNext : offFreeNext+4])
	}
	return list, nil
}

// writeHeader serializes the header into the pinned page-0 frame. The bytes
// reach disk when the frame is flushed (Close, or an explicit Flush).
func (p *Pager) writeHeader() error {
	pg, err := p.Get(page.HeaderPage)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(pg[0:4], p.hdr.Magic)
	binary.LittleEndian.PutUint32(pg[4:8], p.hdr.PageSize)
	binary.LittleEndian.PutUint32(pg[8:12], p.hdr.TotalPages)
	binary.LittleEndian.PutUint32(pg[12:16], p.hdr.FreePages)
	binary.LittleEndian.PutUint32(pg[16:20], p.hdr.FirstFreePage)
	return nil
}

func decodeHeader(pg *page.Page) Header {
	return Header{
		Magic:         binary.LittleEndian.Uint32(pg[0:4]),
		PageSize:      binary.LittleEndian.Uint32(pg[4:8]),
		TotalPages:    binary.LittleEndian.Uint32(pg[8:12]),
		FreePages:     binary.LittleEndian.Uint32(pg[12:16]),
		FirstFreePage: binary.LittleEndian.Uint32(pg[16:20]),
	}
}

// ─── LRU list ─────────────────────────────────────────────────────────────────

func (p *Pager) pushFront(fr *frame) {
	fr.next = p.head
	fr.prev = nil
	if p.head != nil {
		p.head.prev = fr
	}
	p.head = fr
	if p.tail == nil {
		p.tail = fr
	}
}

func (p *Pager) moveToFront(fr *frame) {
	if p.head == fr {
		return
	}
	p.unlink(fr)
	p.pushFront(fr)
}

func (p *Pager) unlink(fr *frame) {
	if fr.prev != nil {
		fr.prev.next = fr.next
	}
	if fr.next != nil {
		fr.next.prev = fr.prev
	}
	if p.head == fr {
		p.head = fr.next
	}
	if p.tail == fr {
		p.tail = fr.prev
	}
	fr.prev = nil
	fr.next = nil
}
