package alloc

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/joshuapare/hmalloc/internal/format"
	"github.com/joshuapare/hmalloc/internal/logger"
	"github.com/joshuapare/hmalloc/internal/pages"
)

// directThreshold is the largest block total served from the free list. Anything
// bigger is mapped directly. Keeping list blocks below PageSize-MinCellSize means
// a block carved from a list cell either splits or absorbs a leftover smaller
// than MinCellSize without its header ever reaching PageSize, which is the size
// Free uses to recognize direct mappings.
const directThreshold = format.PageSize - format.MinCellSize

// ListConfig configures a ListAllocator.
type ListConfig struct {
	// Logger receives debug events (nil falls back to logger.L).
	Logger *slog.Logger
}

// ListAllocator is the address-ordered strategy: one free list shared by every
// goroutine, kept sorted by ascending address, searched first-fit, and coalesced
// after every insertion so no two cells on it are ever address-adjacent.
//
// A single mutex serializes every list mutation and every coalescing pass.
type ListAllocator struct {
	src *pages.Source
	log *slog.Logger

	mu   sync.Mutex
	head *cell

	pagesMapped   int64
	pagesUnmapped int64
	allocs        int64
	frees         int64
	splits        int64
	merges        int64
}

// NewList creates an empty list allocator. A nil config uses defaults.
func NewList(config *ListConfig) *ListAllocator {
	var log *slog.Logger
	if config != nil {
		log = config.Logger
	}
	if log == nil {
		log = logger.L
	}
	return &ListAllocator{
		src: pages.NewSource(log),
		log: log,
	}
}

// Alloc returns the first free cell large enough for the request, splitting off
// the tail when the leftover can hold a cell. With no fitting cell a fresh page
// is mapped and carved the same way.
func (l *ListAllocator) Alloc(size int) (unsafe.Pointer, error) {
	total, err := requestTotal(size)
	if err != nil {
		return nil, err
	}
	total = format.Align8(total)
	if total < format.MinCellSize {
		total = format.MinCellSize
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if total > directThreshold {
		return l.allocDirect(total)
	}

	block := l.takeFirstFit(total)
	if block == nil {
		p, err := l.mapPages(1)
		if err != nil {
			return nil, err
		}
		block = cellAt(p)
		block.size = format.PageSize
	}

	blockSize := int(block.size)
	leftover := blockSize - total
	if leftover >= format.MinCellSize {
		// The tail is unreachable from the list until insert links it.
		if err := l.insert(block.at(total), leftover); err != nil {
			return nil, err
		}
		l.splits++
		blockSize = total
	}

	l.allocs++
	return format.WriteHeader(unsafe.Pointer(block), blockSize), nil
}

// Free unmaps direct mappings and links every other block back into the list at
// its address position, merging it with adjacent free neighbors.
func (l *ListAllocator) Free(p unsafe.Pointer) error {
	if p == nil {
		return fmt.Errorf("%w: nil pointer", ErrInvalidFree)
	}
	block, size := format.ReadHeader(p)
	if size < format.MinCellSize || size%format.CellAlignment != 0 {
		return fmt.Errorf("%w: header size %d", ErrInvalidFree, size)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if size >= format.PageSize {
		if size%format.PageSize != 0 {
			return fmt.Errorf("%w: direct block size %d is not page aligned", ErrInvalidFree, size)
		}
		if c := l.covering(uintptr(block)); c != nil {
			return fmt.Errorf("%w: block %#x lies inside free cell %#x", ErrInvalidFree, uintptr(block), c.start())
		}
		n := format.PagesFor(size)
		if err := l.src.Unmap(block, n); err != nil {
			return fmt.Errorf("%w: %w", ErrUnmapFailed, err)
		}
		l.pagesUnmapped += int64(n)
		l.frees++
		return nil
	}

	if err := l.insert(block, size); err != nil {
		return err
	}
	l.frees++
	return nil
}

// Realloc is composed from Alloc, a bounded copy, and Free.
func (l *ListAllocator) Realloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if p == nil {
		return l.Alloc(size)
	}
	np, err := l.Alloc(size)
	if err != nil {
		return nil, err
	}
	copyPayload(np, p, size)

	if err := l.Free(p); err != nil {
		return np, err
	}
	return np, nil
}

// Stats returns the allocator counters; FreeListLength walks the list.
func (l *ListAllocator) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var length int64
	for c := l.head; c != nil; c = c.next {
		length++
	}
	return Stats{
		PagesMapped:     l.pagesMapped,
		PagesUnmapped:   l.pagesUnmapped,
		ChunksAllocated: l.allocs,
		ChunksFreed:     l.frees,
		FreeListLength:  length,
	}
}

// Splits returns how many allocations carved a leftover cell off their block.
func (l *ListAllocator) Splits() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.splits
}

// Merges returns how many neighbor merges the coalescing passes performed.
func (l *ListAllocator) Merges() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.merges
}

// FreeBytes returns the total size of all cells on the list.
func (l *ListAllocator) FreeBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for c := l.head; c != nil; c = c.next {
		total += int64(c.size)
	}
	return total
}

// Validate checks the list invariants: ascending addresses, no overlap, no two
// address-adjacent cells, and sizes that can hold a cell.
func (l *ListAllocator) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for c := l.head; c != nil; c = c.next {
		if int(c.size) < format.MinCellSize || c.size%format.CellAlignment != 0 {
			return fmt.Errorf("%w: cell %#x has size %d", ErrCorrupt, c.start(), c.size)
		}
		next := c.next
		if next == nil {
			break
		}
		switch {
		case next.start() <= c.start():
			return fmt.Errorf("%w: cell %#x follows %#x", ErrCorrupt, next.start(), c.start())
		case c.end() > next.start():
			return fmt.Errorf("%w: cell %#x overlaps %#x", ErrCorrupt, c.start(), next.start())
		case c.end() == next.start():
			return fmt.Errorf("%w: cells %#x and %#x are adjacent", ErrCorrupt, c.start(), next.start())
		}
	}
	return nil
}

// allocDirect maps whole pages for one block; the header records the mapped size.
func (l *ListAllocator) allocDirect(total int) (unsafe.Pointer, error) {
	n := format.PagesFor(total)
	p, err := l.mapPages(n)
	if err != nil {
		return nil, err
	}
	l.allocs++
	return format.WriteHeader(p, n*format.PageSize), nil
}

// takeFirstFit unlinks and returns the first cell of at least total bytes, or nil.
// The cell removed is the one the scan located.
func (l *ListAllocator) takeFirstFit(total int) *cell {
	var prev *cell
	for c := l.head; c != nil; c = c.next {
		if int(c.size) >= total {
			if prev == nil {
				l.head = c.next
			} else {
				prev.next = c.next
			}
			c.next = nil
			return c
		}
		prev = c
	}
	return nil
}

// insert links the size bytes at p into the list at their address position and
// then coalesces the list. A range overlapping a cell already on the list is
// rejected before any byte of it is written.
func (l *ListAllocator) insert(p unsafe.Pointer, size int) error {
	start := uintptr(p)
	end := start + uintptr(size)

	var prev *cell
	next := l.head
	for next != nil && next.start() <= start {
		prev = next
		next = next.next
	}

	if prev != nil && prev.end() > start {
		return fmt.Errorf("%w: block %#x lies inside free cell %#x", ErrInvalidFree, start, prev.start())
	}
	if next != nil && end > next.start() {
		return fmt.Errorf("%w: block %#x overlaps free cell %#x", ErrInvalidFree, start, next.start())
	}

	c := cellAt(p)
	c.size = uintptr(size)
	c.next = next
	if prev == nil {
		l.head = c
	} else {
		prev.next = c
	}

	l.coalesce()
	return nil
}

// covering returns the free cell containing addr, or nil. A direct block is never
// on the list, so a hit means the header was overwritten by a merged cell.
func (l *ListAllocator) covering(addr uintptr) *cell {
	for c := l.head; c != nil && c.start() <= addr; c = c.next {
		if addr < c.end() {
			return c
		}
	}
	return nil
}

// coalesce merges every pair of address-contiguous cells. After a merge the scan
// stays on the same cell so a run of neighbors collapses into one.
func (l *ListAllocator) coalesce() {
	c := l.head
	for c != nil && c.next != nil {
		if c.end() == c.next.start() {
			c.size += c.next.size
			c.next = c.next.next
			l.merges++
			continue
		}
		c = c.next
	}
}

func (l *ListAllocator) mapPages(n int) (unsafe.Pointer, error) {
	p, err := l.src.Map(n)
	if err != nil {
		return nil, outOfMemory(err)
	}
	l.pagesMapped += int64(n)
	return p, nil
}

// span is a snapshot of one free cell, used by tests and diagnostics.
type span struct {
	addr uintptr
	size int
}

func (l *ListAllocator) spans() []span {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []span
	for c := l.head; c != nil; c = c.next {
		out = append(out, span{addr: c.start(), size: int(c.size)})
	}
	return out
}
