// Package format holds the on-memory layout shared by every allocation strategy:
// page geometry, alignment rules, and the one-word block header that precedes
// each payload.
//
// Block layout:
//
//	Offset      Size        Description
//	0x00        HeaderSize  Total block size (header + usable bytes, possibly rounded).
//	HeaderSize  ...         Payload. Callers receive a pointer to this offset.
//
// When a block is free the same bytes are reinterpreted as a free cell whose
// first word is still the size, followed by a link to the next free cell.
package format

import "unsafe"

const (
	// PageSize is the unit of OS mapping and unmapping.
	PageSize = 4096

	// PageAlignmentMask is used to round sizes up to whole pages.
	PageAlignmentMask = PageSize - 1

	// HeaderSize is the width of the size word stored before every payload.
	HeaderSize = int(unsafe.Sizeof(uintptr(0)))

	// MinCellSize is the smallest block that can be reinterpreted as a free cell
	// {size, next}. Leftovers smaller than this are folded into the live block.
	MinCellSize = 2 * HeaderSize

	// CellAlignment is the alignment of every block start and every block size.
	CellAlignment = 8

	// CellAlignmentMask is used to round sizes up to CellAlignment.
	CellAlignmentMask = CellAlignment - 1
)
