/*
Package hmalloc provides a small facade over the allocators in package alloc.

# Quick Start

Allocate from the process-wide default heap:

	p, err := hmalloc.Malloc(128)
	if err != nil {
	    log.Fatal(err)
	}
	buf := hmalloc.Bytes(p, 128)
	copy(buf, "hello")
	_ = hmalloc.FreeMem(p)

# Strategies

Two backends are available:

  - bucket: per-worker segregated power-of-two buckets from 32 to 4096 bytes
  - list: one address-ordered first-fit free list with coalescing

The default is bucket. Build with -tags hmalloc_list to make list the default,
or pick one explicitly:

	h, err := hmalloc.New(&hmalloc.Options{Strategy: hmalloc.StrategyList})
	a, err := h.Worker()
	p, err := a.Alloc(64)

With the bucket strategy, call Worker once per goroutine; each worker keeps its
own buckets and memory freed through it is only reused by it.

# Memory Model

Blocks live in anonymous OS mappings outside the Go heap. The garbage collector
neither scans nor frees them, so do not store the only reference to a Go object
inside an allocated block.
*/
package hmalloc
