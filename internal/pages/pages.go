// Package pages acquires and releases page-aligned anonymous memory. It is the
// only package that talks to the OS; everything above it sees raw regions of
// whole pages.
package pages

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/hmalloc/internal/buf"
	"github.com/joshuapare/hmalloc/internal/format"
	"github.com/joshuapare/hmalloc/internal/logger"
)

// Size is the fixed page size in bytes.
const Size = format.PageSize

var (
	// ErrBadCount indicates a request for zero or a negative number of pages.
	ErrBadCount = errors.New("pages: page count must be > 0")

	// ErrTooLarge indicates the byte length of the request does not fit in an int.
	ErrTooLarge = errors.New("pages: request too large")
)

// Source maps regions of whole pages and keeps running counters of the pages it
// has handed out and taken back. A Source is safe for concurrent use.
type Source struct {
	log *slog.Logger

	mapped   atomic.Int64
	unmapped atomic.Int64
}

// NewSource creates a page source. A nil log falls back to logger.L.
func NewSource(log *slog.Logger) *Source {
	if log == nil {
		log = logger.L
	}
	return &Source{log: log}
}

// Map returns n zero-initialized, page-aligned pages.
func (s *Source) Map(n int) (unsafe.Pointer, error) {
	length, err := byteLen(n)
	if err != nil {
		return nil, err
	}
	p, err := mapAnon(length)
	if err != nil {
		s.log.Warn("page mapping refused", "pages", n, "err", err)
		return nil, fmt.Errorf("pages: map %d bytes: %w", length, err)
	}
	s.mapped.Add(int64(n))
	s.log.Debug("mapped pages", "pages", n, "addr", fmt.Sprintf("%#x", uintptr(p)))
	return p, nil
}

// Unmap releases n pages starting at p. p must be the start of a region obtained
// from Map with the same page count.
func (s *Source) Unmap(p unsafe.Pointer, n int) error {
	length, err := byteLen(n)
	if err != nil {
		return err
	}
	if err := unmapAnon(p, length); err != nil {
		return fmt.Errorf("pages: unmap %d bytes at %#x: %w", length, uintptr(p), err)
	}
	s.unmapped.Add(int64(n))
	s.log.Debug("unmapped pages", "pages", n, "addr", fmt.Sprintf("%#x", uintptr(p)))
	return nil
}

// Mapped returns the total number of pages obtained through Map.
func (s *Source) Mapped() int64 { return s.mapped.Load() }

// Unmapped returns the total number of pages released through Unmap.
func (s *Source) Unmapped() int64 { return s.unmapped.Load() }

func byteLen(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrBadCount, n)
	}
	length, ok := buf.MulOverflowSafe(n, Size)
	if !ok {
		return 0, fmt.Errorf("%w: %d pages", ErrTooLarge, n)
	}
	return length, nil
}
