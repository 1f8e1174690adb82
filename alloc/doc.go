// Package alloc implements two user-space heap strategies on top of raw page
// mappings.
//
// # Overview
//
// Every block handed out starts with a one-word header holding the block's total
// size (header included). The payload pointer returned to callers sits right
// after that word; Free and Realloc read it back to learn what they are releasing.
// Freed blocks are reinterpreted in place as free cells {size, next}, so the
// smallest block either strategy creates is two words.
//
// Both strategies implement the Allocator interface:
//
//   - Alloc(size): return a pointer to at least size usable bytes
//   - Free(p): release a block returned by Alloc or Realloc
//   - Realloc(p, size): move a block, preserving min(old, size) bytes
//   - Stats(): counters for pages mapped/unmapped, chunks allocated/freed, free cells
//
// # Bucket strategy
//
// BucketAllocator hands out Workers. Each Worker owns eight free lists, one per
// power-of-two class:
//
//	Class 0:   32 bytes
//	Class 1:   64 bytes
//	Class 2:  128 bytes
//	Class 3:  256 bytes
//	Class 4:  512 bytes
//	Class 5: 1024 bytes
//	Class 6: 2048 bytes
//	Class 7: 4096 bytes
//
// A request is rounded up (header included) to its class and served by popping
// that bucket. Initializing a worker maps one bulk region shared out among all
// classes; an empty bucket later gets a fresh region of its own. Free pushes the
// block back onto the bucket named by its header. Nothing is coalesced and
// nothing is returned to the OS, and cells freed by one worker are never seen by
// another.
//
//	w, err := alloc.NewBucket(nil).NewWorker()
//	if err != nil {
//	    return err
//	}
//	p, err := w.Alloc(40) // header 8 + 40 = 48 → class 64
//
// # List strategy
//
// ListAllocator keeps one free list sorted by address and shared by every
// goroutine behind one mutex. Alloc takes the first cell large enough, splits
// the tail back onto the list when it can hold a cell, and maps a fresh page when
// nothing fits. Free inserts the block at its address position and merges it with
// any neighbor it touches, so the list never holds two adjacent cells.
//
//	l := alloc.NewList(nil)
//	p, err := l.Alloc(100)
//	...
//	err = l.Free(p)
//
// # Large blocks
//
// Requests whose block would exceed one page (for the list strategy: come within
// one free cell of a page) bypass the free lists in both strategies. They are
// mapped as whole pages, the header records the mapped size, and Free unmaps
// exactly those pages.
//
// # Memory model
//
// Allocated memory lives outside the Go heap. The garbage collector neither
// scans nor moves it, so storing the only reference to a Go object there lets
// the collector reclaim that object.
//
// # Related Packages
//
//   - github.com/joshuapare/hmalloc/internal/pages: page mapping
//   - github.com/joshuapare/hmalloc/internal/format: header codec and page geometry
//   - github.com/joshuapare/hmalloc/pkg/hmalloc: strategy selection and helpers
package alloc
