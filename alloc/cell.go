package alloc

import "unsafe"

// cell is the view of a freed block: the header word keeps the block size and
// the following word links to the next free cell.
//
// A block is either live (owned by a caller, reachable only through the payload
// pointer) or free (reachable from exactly one free list), never both. Every
// transition between the two happens under the owning allocator's lock: Free
// turns a live block into a cell, Alloc unlinks a cell before stamping a header
// over it.
type cell struct {
	size uintptr
	next *cell
}

// cellAt reinterprets the block at p as a free cell.
func cellAt(p unsafe.Pointer) *cell {
	return (*cell)(p)
}

func (c *cell) start() uintptr {
	return uintptr(unsafe.Pointer(c))
}

// end returns the first address past the cell.
func (c *cell) end() uintptr {
	return c.start() + c.size
}

// at returns the address off bytes into the cell.
func (c *cell) at(off int) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(c), off)
}
