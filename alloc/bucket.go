package alloc

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/joshuapare/hmalloc/internal/buf"
	"github.com/joshuapare/hmalloc/internal/format"
	"github.com/joshuapare/hmalloc/internal/logger"
	"github.com/joshuapare/hmalloc/internal/pages"
)

// BucketConfig defines how the bucket strategy acquires pages.
type BucketConfig struct {
	// InitPages is the number of pages each class receives from the bulk region
	// mapped when a worker is initialized. The whole region is mapped in one call.
	InitPages [NumClasses]int

	// RefillPages is the size of the region mapped for a single class once its
	// bucket runs dry. Every cell of that region goes to the exhausted class.
	RefillPages int

	// Logger receives debug events (nil falls back to logger.L).
	Logger *slog.Logger
}

// DefaultBucketConfig maps 100 pages up front, biased toward more slots for the
// smaller classes, and refills 50 pages at a time.
//
//	  32 - 1280 cells - 10 pages
//	  64 -  640 cells - 10 pages
//	 128 -  320 cells - 10 pages
//	 256 -  160 cells - 10 pages
//	 512 -   80 cells - 10 pages
//	1024 -   40 cells - 10 pages
//	2048 -   40 cells - 20 pages
//	4096 -   20 cells - 20 pages
var DefaultBucketConfig = BucketConfig{
	InitPages:   [NumClasses]int{10, 10, 10, 10, 10, 10, 20, 20},
	RefillPages: 50,
}

// BucketAllocator is the segregated-size-class strategy. It owns the page source
// and hands out Workers; each Worker keeps a private table of eight free lists,
// one per power-of-two class from 32 to 4096 bytes.
//
// Memory freed through a Worker is only ever reused by that Worker. Pages claimed
// by a class are never returned to the OS; only direct mappings for requests
// above one page are unmapped.
type BucketAllocator struct {
	src    *pages.Source
	config BucketConfig
	log    *slog.Logger

	mu      sync.Mutex
	workers []*Worker
	nextID  int
}

// NewBucket creates a bucket allocator. A nil config uses DefaultBucketConfig;
// zero fields of a non-nil config take their default.
func NewBucket(config *BucketConfig) *BucketAllocator {
	if config == nil {
		config = &DefaultBucketConfig
	}
	cfg := *config
	if cfg.InitPages == ([NumClasses]int{}) {
		cfg.InitPages = DefaultBucketConfig.InitPages
	}
	if cfg.RefillPages <= 0 {
		cfg.RefillPages = DefaultBucketConfig.RefillPages
	}
	log := cfg.Logger
	if log == nil {
		log = logger.L
	}
	return &BucketAllocator{
		src:    pages.NewSource(log),
		config: cfg,
		log:    log,
	}
}

// NewWorker creates and initializes a worker with its own bucket table.
// A worker must only be used by one goroutine at a time for its state to stay
// private; its lock still guards every mutation.
func (a *BucketAllocator) NewWorker() (*Worker, error) {
	a.mu.Lock()
	w := &Worker{owner: a, id: a.nextID}
	a.nextID++
	a.mu.Unlock()

	if err := w.Init(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.workers = append(a.workers, w)
	a.mu.Unlock()

	return w, nil
}

// Workers returns the number of workers created so far.
func (a *BucketAllocator) Workers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.workers)
}

// Stats sums the counters of every worker.
func (a *BucketAllocator) Stats() Stats {
	a.mu.Lock()
	workers := make([]*Worker, len(a.workers))
	copy(workers, a.workers)
	a.mu.Unlock()

	var total Stats
	for _, w := range workers {
		total = total.Add(w.Stats())
	}
	return total
}

// Worker is one goroutine's allocator over a BucketAllocator.
type Worker struct {
	owner *BucketAllocator
	id    int

	mu          sync.Mutex
	initialized bool
	buckets     [NumClasses]*cell

	pagesMapped   int64
	pagesUnmapped int64
	allocs        int64
	frees         int64
}

// Init maps the bulk region and distributes it across all eight buckets.
// It runs once per worker; later calls are no-ops.
func (w *Worker) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return nil
	}

	cfg := &w.owner.config
	total := 0
	for idx, n := range cfg.InitPages {
		if n < 0 {
			return fmt.Errorf("alloc: class %d has negative init page count %d", classSizes[idx], n)
		}
		total += n
	}

	region, err := w.mapPages(total)
	if err != nil {
		return err
	}

	off := 0
	for idx, n := range cfg.InitPages {
		if n == 0 {
			continue
		}
		length := n * format.PageSize
		if err := w.carve(idx, unsafe.Add(region, off), length); err != nil {
			return err
		}
		off += length
	}

	w.initialized = true
	w.owner.log.Debug("worker buckets initialized", "worker", w.id, "pages", total)
	return nil
}

// Alloc returns a block from the bucket matching the rounded request, or a
// direct mapping when the request plus header exceeds one page.
func (w *Worker) Alloc(size int) (unsafe.Pointer, error) {
	total, err := requestTotal(size)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if total > maxClassSize {
		return w.allocDirect(total)
	}

	if total < format.MinCellSize {
		total = format.MinCellSize
	}
	class := bucketSizeFor(total)
	idx := bucketIndex(class)

	c, err := w.pop(idx)
	if err != nil {
		return nil, err
	}

	w.allocs++
	return format.WriteHeader(unsafe.Pointer(c), class), nil
}

// Free returns a block to the bucket recorded in its header, or unmaps it when it
// was mapped directly. No coalescing happens.
func (w *Worker) Free(p unsafe.Pointer) error {
	if p == nil {
		return fmt.Errorf("%w: nil pointer", ErrInvalidFree)
	}
	block, size := format.ReadHeader(p)

	w.mu.Lock()
	defer w.mu.Unlock()

	if size > maxClassSize {
		if size%format.PageSize != 0 {
			return fmt.Errorf("%w: direct block size %d is not page aligned", ErrInvalidFree, size)
		}
		n := size / format.PageSize
		if err := w.owner.src.Unmap(block, n); err != nil {
			return fmt.Errorf("%w: %w", ErrUnmapFailed, err)
		}
		w.pagesUnmapped += int64(n)
		w.frees++
		return nil
	}

	idx, ok := classIndex(size)
	if !ok {
		return fmt.Errorf("%w: header size %d is not a bucket class", ErrInvalidFree, size)
	}

	c := cellAt(block)
	c.size = uintptr(size)
	c.next = w.buckets[idx]
	w.buckets[idx] = c
	w.frees++
	return nil
}

// Realloc allocates a block for size bytes, copies the old payload and frees the
// old block. The copy is bounded by the old block's usable capacity and by size,
// so it never reads past the end of the old class. The new block is returned even
// when releasing the old one fails.
func (w *Worker) Realloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if p == nil {
		return w.Alloc(size)
	}
	np, err := w.Alloc(size)
	if err != nil {
		return nil, err
	}
	copyPayload(np, p, size)

	if err := w.Free(p); err != nil {
		return np, err
	}
	return np, nil
}

// Stats returns this worker's counters; FreeListLength counts the cells of all
// eight buckets.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	var length int64
	for idx := range w.buckets {
		for c := w.buckets[idx]; c != nil; c = c.next {
			length++
		}
	}
	return Stats{
		PagesMapped:     w.pagesMapped,
		PagesUnmapped:   w.pagesUnmapped,
		ChunksAllocated: w.allocs,
		ChunksFreed:     w.frees,
		FreeListLength:  length,
	}
}

// BucketLengths returns the number of free cells in each bucket.
func (w *Worker) BucketLengths() [NumClasses]int {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out [NumClasses]int
	for idx := range w.buckets {
		for c := w.buckets[idx]; c != nil; c = c.next {
			out[idx]++
		}
	}
	return out
}

// Validate walks every bucket and checks that each cell carries exactly the
// bucket's class size.
func (w *Worker) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for idx := range w.buckets {
		for c := w.buckets[idx]; c != nil; c = c.next {
			if int(c.size) != classSizes[idx] {
				return fmt.Errorf("%w: bucket %d (class %d) holds cell %#x of size %d",
					ErrCorrupt, idx, classSizes[idx], c.start(), c.size)
			}
			if c.start()%format.CellAlignment != 0 {
				return fmt.Errorf("%w: bucket %d holds misaligned cell %#x", ErrCorrupt, idx, c.start())
			}
		}
	}
	return nil
}

// allocDirect maps whole pages for one block; the header records the mapped size.
func (w *Worker) allocDirect(total int) (unsafe.Pointer, error) {
	n := format.PagesFor(total)
	p, err := w.mapPages(n)
	if err != nil {
		return nil, err
	}
	w.allocs++
	return format.WriteHeader(p, n*format.PageSize), nil
}

// pop unlinks the head of bucket idx, refilling the bucket first when empty.
func (w *Worker) pop(idx int) (*cell, error) {
	if w.buckets[idx] == nil {
		if err := w.refill(idx); err != nil {
			return nil, err
		}
	}
	c := w.buckets[idx]
	w.buckets[idx] = c.next
	c.next = nil
	return c, nil
}

// refill maps a fresh region exclusively for bucket idx.
func (w *Worker) refill(idx int) error {
	n := w.owner.config.RefillPages
	region, err := w.mapPages(n)
	if err != nil {
		return err
	}
	if err := w.carve(idx, region, n*format.PageSize); err != nil {
		return err
	}
	w.owner.log.Debug("bucket refilled",
		"worker", w.id, "class", classSizes[idx], "pages", n, "cells", n*format.PageSize/classSizes[idx])
	return nil
}

// carve splits length bytes at region into cells of bucket idx and pushes them.
func (w *Worker) carve(idx int, region unsafe.Pointer, length int) error {
	size := classSizes[idx]
	count := length / size
	if _, err := buf.CheckSpan(length, 0, count, size); err != nil {
		return fmt.Errorf("alloc: carve class %d: %w", size, err)
	}
	for i := range count {
		c := cellAt(unsafe.Add(region, i*size))
		c.size = uintptr(size)
		c.next = w.buckets[idx]
		w.buckets[idx] = c
	}
	return nil
}

func (w *Worker) mapPages(n int) (unsafe.Pointer, error) {
	p, err := w.owner.src.Map(n)
	if err != nil {
		return nil, outOfMemory(err)
	}
	w.pagesMapped += int64(n)
	return p, nil
}
