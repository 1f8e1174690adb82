package alloc

import "errors"

var (
	// ErrOutOfMemory indicates the OS refused a page mapping or the request size
	// cannot be represented once the header is added.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvalidFree indicates a pointer that cannot have come from this allocator.
	// Detection is best-effort: nil pointers and impossible header sizes are caught.
	// The list strategy also rejects blocks that overlap a cell already free; the
	// bucket strategy does not detect double frees.
	ErrInvalidFree = errors.New("alloc: invalid free")

	// ErrBadSize indicates a negative request size.
	ErrBadSize = errors.New("alloc: size must be >= 0")

	// ErrUnmapFailed indicates the OS refused to release a direct mapping.
	ErrUnmapFailed = errors.New("alloc: unmap failed")

	// ErrCorrupt indicates a free-list invariant was found broken by Validate.
	ErrCorrupt = errors.New("alloc: free list corrupt")
)
