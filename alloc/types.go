package alloc

// Stats is a read-only diagnostic snapshot of an allocator.
type Stats struct {
	PagesMapped     int64 `json:"pages_mapped"`     // Pages obtained from the OS
	PagesUnmapped   int64 `json:"pages_unmapped"`   // Pages returned to the OS
	ChunksAllocated int64 `json:"chunks_allocated"` // Alloc calls that succeeded
	ChunksFreed     int64 `json:"chunks_freed"`     // Free calls that succeeded
	FreeListLength  int64 `json:"free_list_length"` // Cells currently reachable from free lists
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		PagesMapped:     s.PagesMapped + o.PagesMapped,
		PagesUnmapped:   s.PagesUnmapped + o.PagesUnmapped,
		ChunksAllocated: s.ChunksAllocated + o.ChunksAllocated,
		ChunksFreed:     s.ChunksFreed + o.ChunksFreed,
		FreeListLength:  s.FreeListLength + o.FreeListLength,
	}
}

// InUse returns the number of chunks allocated and not yet freed.
func (s Stats) InUse() int64 {
	return s.ChunksAllocated - s.ChunksFreed
}
