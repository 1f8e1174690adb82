package format

// Align8 returns n aligned up to the next 8-byte boundary.
// Used for block sizes so that every carved block starts word aligned.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8(n int) int {
	return (n + CellAlignmentMask) & ^CellAlignmentMask
}

// AlignPage returns n aligned up to the next 4KB (4096-byte) boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n int) int {
	return (n + PageAlignmentMask) & ^PageAlignmentMask
}

// PagesFor returns how many whole pages are needed to hold n bytes.
//
// Example:
//
//	PagesFor(4096) = 1
//	PagesFor(8008) = 2
func PagesFor(n int) int {
	pages := n / PageSize
	if pages*PageSize == n {
		return pages
	}
	return pages + 1
}
