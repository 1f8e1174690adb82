package hmalloc

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/joshuapare/hmalloc/alloc"
)

// Options controls how a Heap is built.
type Options struct {
	// Strategy selects the backend. StrategyDefault uses DefaultStrategy.
	Strategy Strategy

	// Logger receives allocator debug events. If nil, the internal logger is used.
	Logger *slog.Logger

	// InitPages overrides the per-class page counts mapped when a bucket worker
	// starts. Zero keeps alloc.DefaultBucketConfig. Ignored by the list strategy.
	InitPages [alloc.NumClasses]int

	// RefillPages overrides the region size mapped when a bucket runs dry.
	// Zero keeps the default. Ignored by the list strategy.
	RefillPages int
}

// Heap is an allocator instance of one strategy.
//
// With StrategyBucket every call to Worker returns a fresh worker with its own
// buckets; hand one to each goroutine. With StrategyList every call returns the
// same shared allocator.
type Heap struct {
	strategy Strategy
	bucket   *alloc.BucketAllocator
	list     *alloc.ListAllocator
}

// New builds a heap. A nil opts is equivalent to &Options{}.
func New(opts *Options) (*Heap, error) {
	if opts == nil {
		opts = &Options{}
	}

	h := &Heap{strategy: opts.Strategy.resolve()}
	switch h.strategy {
	case StrategyBucket:
		h.bucket = alloc.NewBucket(&alloc.BucketConfig{
			InitPages:   opts.InitPages,
			RefillPages: opts.RefillPages,
			Logger:      opts.Logger,
		})
	case StrategyList:
		h.list = alloc.NewList(&alloc.ListConfig{Logger: opts.Logger})
	default:
		return nil, fmt.Errorf("hmalloc: unsupported strategy %v", opts.Strategy)
	}
	return h, nil
}

// Strategy returns the resolved backend of h.
func (h *Heap) Strategy() Strategy {
	return h.strategy
}

// Worker returns an allocator for the calling goroutine.
func (h *Heap) Worker() (alloc.Allocator, error) {
	if h.list != nil {
		return h.list, nil
	}
	return h.bucket.NewWorker()
}

// Stats returns the counters of the whole heap, summed over all bucket workers.
func (h *Heap) Stats() alloc.Stats {
	if h.list != nil {
		return h.list.Stats()
	}
	return h.bucket.Stats()
}

// Validate checks the free-list invariants of the list strategy. The bucket
// strategy keeps its lists per worker; use alloc.Worker.Validate for those.
func (h *Heap) Validate() error {
	if h.list != nil {
		return h.list.Validate()
	}
	return nil
}

var (
	defaultOnce   sync.Once
	defaultHeap   *Heap
	defaultWorker alloc.Allocator
	defaultErr    error
)

// Default returns the process-wide heap of DefaultStrategy, created on first use.
func Default() (*Heap, error) {
	_, err := defaultAllocator()
	return defaultHeap, err
}

func defaultAllocator() (alloc.Allocator, error) {
	defaultOnce.Do(func() {
		defaultHeap, defaultErr = New(nil)
		if defaultErr != nil {
			return
		}
		defaultWorker, defaultErr = defaultHeap.Worker()
	})
	return defaultWorker, defaultErr
}

// Malloc allocates size bytes from the default heap. Under the bucket strategy
// all callers share one worker, so freed blocks are reused across goroutines.
func Malloc(size int) (unsafe.Pointer, error) {
	a, err := defaultAllocator()
	if err != nil {
		return nil, err
	}
	return a.Alloc(size)
}

// FreeMem releases a block obtained from Malloc or Realloc.
func FreeMem(p unsafe.Pointer) error {
	a, err := defaultAllocator()
	if err != nil {
		return err
	}
	return a.Free(p)
}

// Realloc resizes a block obtained from Malloc or Realloc.
func Realloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	a, err := defaultAllocator()
	if err != nil {
		return nil, err
	}
	return a.Realloc(p, size)
}

// Bytes views the first n bytes at p as a slice. The slice aliases memory the
// garbage collector does not manage; it is invalid once p is freed.
func Bytes(p unsafe.Pointer, n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}
