package alloc

import "unsafe"

// Allocator is the contract shared by both strategies.
//
// Implementations:
//   - *Worker: one goroutine's view of a BucketAllocator (segregated size classes)
//   - *ListAllocator: address-ordered first-fit list with coalescing, shared by all goroutines
//
// Pointers returned by Alloc address memory outside the Go heap. The garbage
// collector does not scan it, so it must not be the only place a Go pointer is kept.
type Allocator interface {
	// Alloc returns a pointer to at least size usable bytes.
	// Fails with ErrOutOfMemory when the backing pages cannot be mapped.
	Alloc(size int) (unsafe.Pointer, error)

	// Free releases a block returned by Alloc or Realloc on the same allocator.
	// Freeing a foreign or already freed pointer is undefined.
	Free(p unsafe.Pointer) error

	// Realloc moves the block behind p to a block of size bytes, preserving the
	// first min(old, size) bytes. A nil p behaves like Alloc.
	Realloc(p unsafe.Pointer, size int) (unsafe.Pointer, error)

	// Stats returns a snapshot of the allocator counters.
	Stats() Stats
}

var (
	_ Allocator = (*Worker)(nil)
	_ Allocator = (*ListAllocator)(nil)
)
