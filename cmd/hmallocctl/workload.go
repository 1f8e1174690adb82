package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"unsafe"

	"github.com/joshuapare/hmalloc/alloc"
	"github.com/joshuapare/hmalloc/pkg/hmalloc"
)

// errPayloadCorrupt reports bytes that changed while a block was live.
var errPayloadCorrupt = errors.New("hmallocctl: payload corrupted")

// workloadConfig sizes one workload run on one worker.
type workloadConfig struct {
	Ops     int    // Operations per workload
	MaxSize int    // Largest request of the random workload
	Seed    uint64 // Seed of the random workload
}

// workload drives one allocator. It must free everything it allocates.
type workload func(ctx context.Context, a alloc.Allocator, cfg workloadConfig) error

var workloads = map[string]workload{
	"list":   listWorkload,
	"vector": vectorWorkload,
	"random": randomWorkload,
}

// workloadNames returns the known workload names in sorted order.
func workloadNames() []string {
	names := make([]string, 0, len(workloads))
	for name := range workloads {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// parseWorkloads expands a comma separated list; "all" selects every workload.
func parseWorkloads(list string) ([]string, error) {
	var out []string
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case name == "":
			continue
		case name == "all":
			return workloadNames(), nil
		case workloads[name] == nil:
			return nil, fmt.Errorf("unknown workload %q (want one of %s, all)",
				name, strings.Join(workloadNames(), ", "))
		case !slices.Contains(out, name):
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no workload selected")
	}
	return out, nil
}

// node is one element of the linked list workload, stored in allocated memory.
type node struct {
	value int64
	next  *node
}

// listWorkload builds a singly linked list of Ops nodes, checks it, then frees
// every node.
func listWorkload(ctx context.Context, a alloc.Allocator, cfg workloadConfig) error {
	var head *node
	var want int64

	defer func() {
		for head != nil {
			next := head.next
			_ = a.Free(unsafe.Pointer(head))
			head = next
		}
	}()

	for i := range cfg.Ops {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		p, err := a.Alloc(int(unsafe.Sizeof(node{})))
		if err != nil {
			return err
		}
		n := (*node)(p)
		n.value = int64(i)
		n.next = head
		head = n
		want += int64(i)
	}

	var got int64
	for n := head; n != nil; n = n.next {
		got += n.value
	}
	if got != want {
		return fmt.Errorf("%w: list sum %d, want %d", errPayloadCorrupt, got, want)
	}

	for head != nil {
		next := head.next
		if err := a.Free(unsafe.Pointer(head)); err != nil {
			return err
		}
		head = next
	}
	return nil
}

// vectorWorkload grows an int64 vector to Ops elements by doubling its capacity
// with Realloc, then checks every element.
func vectorWorkload(ctx context.Context, a alloc.Allocator, cfg workloadConfig) error {
	const elem = int(unsafe.Sizeof(int64(0)))

	capacity := 4
	p, err := a.Alloc(capacity * elem)
	if err != nil {
		return err
	}
	defer func() { _ = a.Free(p) }()

	for i := range cfg.Ops {
		if i == capacity {
			if err := ctx.Err(); err != nil {
				return err
			}
			capacity *= 2
			np, err := a.Realloc(p, capacity*elem)
			if np != nil {
				p = np
			}
			if err != nil {
				return err
			}
		}
		*(*int64)(unsafe.Add(p, i*elem)) = int64(i) * 3
	}

	for i := range cfg.Ops {
		if got := *(*int64)(unsafe.Add(p, i*elem)); got != int64(i)*3 {
			return fmt.Errorf("%w: vector[%d] = %d, want %d", errPayloadCorrupt, i, got, int64(i)*3)
		}
	}
	return nil
}

// liveBlock is an allocation held by the random workload.
type liveBlock struct {
	p    unsafe.Pointer
	size int
	tag  byte
}

// randomWorkload mixes allocations of random sizes with frees of random live
// blocks, checking each block's fill pattern before it is released.
func randomWorkload(ctx context.Context, a alloc.Allocator, cfg workloadConfig) error {
	const maxLive = 256

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	live := make([]liveBlock, 0, maxLive)

	release := func(b liveBlock) error {
		if !filledWith(b.p, b.size, b.tag) {
			return fmt.Errorf("%w: block of %d bytes lost tag %#x", errPayloadCorrupt, b.size, b.tag)
		}
		return a.Free(b.p)
	}
	defer func() {
		for _, b := range live {
			_ = a.Free(b.p)
		}
	}()

	for i := range cfg.Ops {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(live) == maxLive || (len(live) > 0 && rng.IntN(3) == 0) {
			j := rng.IntN(len(live))
			b := live[j]
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			if err := release(b); err != nil {
				return err
			}
			continue
		}

		size := rng.IntN(cfg.MaxSize + 1)
		p, err := a.Alloc(size)
		if err != nil {
			return err
		}
		b := liveBlock{p: p, size: size, tag: byte(i)}
		buf := hmalloc.Bytes(p, size)
		for k := range buf {
			buf[k] = b.tag
		}
		live = append(live, b)
	}

	for len(live) > 0 {
		b := live[len(live)-1]
		live = live[:len(live)-1]
		if err := release(b); err != nil {
			return err
		}
	}
	return nil
}

func filledWith(p unsafe.Pointer, n int, tag byte) bool {
	for _, b := range hmalloc.Bytes(p, n) {
		if b != tag {
			return false
		}
	}
	return true
}
