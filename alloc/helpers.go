package alloc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/hmalloc/internal/buf"
	"github.com/joshuapare/hmalloc/internal/format"
)

// requestTotal returns size plus the header word, the raw block size before any
// strategy-specific rounding.
func requestTotal(size int) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: got %d", ErrBadSize, size)
	}
	total, ok := buf.AddOverflowSafe(size, format.HeaderSize+format.CellAlignmentMask)
	if !ok {
		return 0, fmt.Errorf("%w: %d bytes cannot be addressed", ErrOutOfMemory, size)
	}
	return total - format.CellAlignmentMask, nil
}

// outOfMemory wraps a page source failure so callers can match ErrOutOfMemory.
func outOfMemory(err error) error {
	return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
}

// copyPayload copies the payload of src into dst, stopping at limit bytes or at
// the end of the smaller payload. Both pointers must carry headers.
func copyPayload(dst, src unsafe.Pointer, limit int) {
	to := format.Payload(dst)
	if limit < len(to) {
		to = to[:max(limit, 0)]
	}
	copy(to, format.Payload(src))
}
