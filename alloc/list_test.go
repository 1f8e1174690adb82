package alloc

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hmalloc/internal/format"
)

// blockOf returns the address of the block header in front of payload p.
func blockOf(p unsafe.Pointer) uintptr {
	return uintptr(p) - uintptr(format.HeaderSize)
}

func TestList_SplitAndCoalesce(t *testing.T) {
	l := NewList(nil)

	a, err := l.Alloc(100)
	require.NoError(t, err)
	b, err := l.Alloc(100)
	require.NoError(t, err)
	c, err := l.Alloc(100)
	require.NoError(t, err)

	base := blockOf(a)
	require.Zero(t, base%format.PageSize, "first block starts the fresh page")
	require.Equal(t, 112, headerOf(a))
	require.Equal(t, 112, distance(a, b))
	require.Equal(t, 224, distance(a, c))
	require.Equal(t, []span{{base + 336, 3760}}, l.spans())
	require.Equal(t, int64(1), l.Stats().PagesMapped)

	require.NoError(t, l.Free(a))
	require.Equal(t, []span{{base, 112}, {base + 336, 3760}}, l.spans())

	require.NoError(t, l.Free(b))
	require.Equal(t, []span{{base, 224}, {base + 336, 3760}}, l.spans())

	require.NoError(t, l.Free(c))
	require.Equal(t, []span{{base, format.PageSize}}, l.spans(), "page must coalesce back into one cell")

	require.Equal(t, int64(3), l.Splits())
	require.Equal(t, int64(3), l.Merges())

	st := l.Stats()
	require.Equal(t, int64(1), st.PagesMapped)
	require.Zero(t, st.PagesUnmapped)
	require.Equal(t, int64(3), st.ChunksAllocated)
	require.Equal(t, int64(3), st.ChunksFreed)
	require.Equal(t, int64(1), st.FreeListLength)
	require.NoError(t, l.Validate())
}

func TestList_FirstFit(t *testing.T) {
	l := NewList(nil)

	x1, err := l.Alloc(192) // block 200
	require.NoError(t, err)
	_, err = l.Alloc(8) // block 16, keeps x1 and x2 apart
	require.NoError(t, err)
	x2, err := l.Alloc(392) // block 400
	require.NoError(t, err)
	_, err = l.Alloc(8) // block 16, keeps x2 and the tail apart
	require.NoError(t, err)

	base := blockOf(x1)
	require.Equal(t, 216, distance(x1, x2))

	require.NoError(t, l.Free(x1))
	require.NoError(t, l.Free(x2))
	require.Equal(t, []span{{base, 200}, {base + 216, 400}, {base + 632, 3464}}, l.spans())

	// The 200-byte cell is first but too small; the 400-byte cell is the first fit.
	p, err := l.Alloc(300)
	require.NoError(t, err)
	require.Equal(t, x2, p)
	require.Equal(t, 312, headerOf(p))
	require.Equal(t, []span{{base, 200}, {base + 528, 88}, {base + 632, 3464}}, l.spans())

	q, err := l.Alloc(150)
	require.NoError(t, err)
	require.Equal(t, x1, q)
	require.Equal(t, 160, headerOf(q))
	require.Equal(t, []span{{base + 160, 40}, {base + 528, 88}, {base + 632, 3464}}, l.spans())

	// An 8-byte leftover cannot hold a cell and is absorbed into the block.
	r, err := l.Alloc(72)
	require.NoError(t, err)
	require.Equal(t, base+528, blockOf(r))
	require.Equal(t, 88, headerOf(r))
	require.Equal(t, []span{{base + 160, 40}, {base + 632, 3464}}, l.spans())

	require.Equal(t, int64(1), l.Stats().PagesMapped)
	require.NoError(t, l.Validate())
}

func TestList_BlockSizes(t *testing.T) {
	l := NewList(nil)

	table := []struct {
		name   string
		size   int
		header int
		pages  int64 // pages mapped by this request
		direct bool
	}{
		{"zero clamps to a cell", 0, 16, 1, false},
		{"one byte", 1, 16, 0, false},
		{"aligns to words", 9, 24, 0, false},
		{"largest list block", 4072, 4080, 0, false},
		{"first direct size", 4073, 4096, 1, true},
		{"one page direct", 4088, 4096, 1, true},
		{"two pages", 8000, 8192, 2, true},
	}
	for _, e := range table {
		t.Run(e.name, func(t *testing.T) {
			before := l.Stats()
			p, err := l.Alloc(e.size)
			require.NoError(t, err)
			require.Equal(t, e.header, headerOf(p))
			require.Zero(t, uintptr(p)%format.CellAlignment)
			require.Equal(t, before.PagesMapped+e.pages, l.Stats().PagesMapped)

			fill(p, e.size, 0x42)
			requireFilled(t, p, e.size, 0x42, e.name)

			require.NoError(t, l.Free(p))
			after := l.Stats()
			if e.direct {
				require.Equal(t, before.PagesUnmapped+e.pages, after.PagesUnmapped)
			} else {
				require.Equal(t, before.PagesUnmapped, after.PagesUnmapped)
			}
		})
	}
	require.NoError(t, l.Validate())
}

func TestList_ListBlocksStayBelowPage(t *testing.T) {
	l := NewList(nil)

	for size := 0; size <= format.PageSize; size++ {
		p, err := l.Alloc(size)
		require.NoError(t, err)
		h := headerOf(p)
		if h >= format.PageSize {
			require.Zero(t, h%format.PageSize, "size %d", size)
			require.Zero(t, blockOf(p)%format.PageSize, "size %d", size)
		}
		require.GreaterOrEqual(t, h, size+format.HeaderSize)
		require.NoError(t, l.Free(p))
	}
	require.NoError(t, l.Validate())
}

func TestList_GuardBlocksSurvive(t *testing.T) {
	l := NewList(nil)

	for size := 1; size <= format.PageSize; size++ {
		before, err := l.Alloc(size)
		require.NoError(t, err)
		block, err := l.Alloc(size)
		require.NoError(t, err)
		after, err := l.Alloc(size)
		require.NoError(t, err)

		fill(before, size, 0xA5)
		fill(after, size, 0x5A)
		fill(block, size, 0xFF)

		require.NoError(t, l.Free(block))

		requireFilled(t, before, size, 0xA5, fmt.Sprintf("guard before size %d", size))
		requireFilled(t, after, size, 0x5A, fmt.Sprintf("guard after size %d", size))

		require.NoError(t, l.Free(before))
		require.NoError(t, l.Free(after))
		require.NoError(t, l.Validate())
	}
}

func TestList_DoubleFree(t *testing.T) {
	t.Run("cell still on the list", func(t *testing.T) {
		l := NewList(nil)
		a, err := l.Alloc(100)
		require.NoError(t, err)
		_, err = l.Alloc(100)
		require.NoError(t, err)

		require.NoError(t, l.Free(a))
		before := l.spans()

		require.ErrorIs(t, l.Free(a), ErrInvalidFree)
		require.Equal(t, before, l.spans(), "a rejected free must not touch the list")
		require.Equal(t, int64(1), l.Stats().ChunksFreed)
	})

	t.Run("cell merged into a page", func(t *testing.T) {
		l := NewList(nil)
		a, err := l.Alloc(100)
		require.NoError(t, err)

		require.NoError(t, l.Free(a))
		require.Equal(t, []span{{blockOf(a), format.PageSize}}, l.spans())

		require.ErrorIs(t, l.Free(a), ErrInvalidFree)
		require.Zero(t, l.Stats().PagesUnmapped)
		require.NoError(t, l.Validate())
	})
}

func TestList_InvalidFree(t *testing.T) {
	l := NewList(nil)

	require.ErrorIs(t, l.Free(nil), ErrInvalidFree)

	p, err := l.Alloc(100)
	require.NoError(t, err)
	block, _ := format.ReadHeader(p)

	format.WriteHeader(block, 12)
	require.ErrorIs(t, l.Free(p), ErrInvalidFree)

	format.WriteHeader(block, 113)
	require.ErrorIs(t, l.Free(p), ErrInvalidFree)

	format.WriteHeader(block, format.PageSize+8)
	require.ErrorIs(t, l.Free(p), ErrInvalidFree)

	format.WriteHeader(block, 112)
	require.NoError(t, l.Free(p))
}

func TestList_BadSizes(t *testing.T) {
	l := NewList(nil)

	_, err := l.Alloc(-5)
	require.ErrorIs(t, err, ErrBadSize)

	_, err = l.Alloc(math.MaxInt)
	require.ErrorIs(t, err, ErrOutOfMemory)

	require.Zero(t, l.Stats().ChunksAllocated)
}

func TestList_Realloc(t *testing.T) {
	l := NewList(nil)

	p, err := l.Realloc(nil, 50)
	require.NoError(t, err)
	require.Equal(t, 64, headerOf(p))
	fill(p, 50, 0x7E)

	q, err := l.Realloc(p, 3000)
	require.NoError(t, err)
	requireFilled(t, q, 50, 0x7E, "grown block")
	fill(q, 3000, 0x7F)

	r, err := l.Realloc(q, 20000)
	require.NoError(t, err)
	require.Equal(t, 5*format.PageSize, headerOf(r))
	requireFilled(t, r, 3000, 0x7F, "direct block")

	s, err := l.Realloc(r, 10)
	require.NoError(t, err)
	require.Equal(t, 24, headerOf(s))
	requireFilled(t, s, 10, 0x7F, "shrunk block")

	require.NoError(t, l.Free(s))

	st := l.Stats()
	require.Equal(t, int64(4), st.ChunksAllocated)
	require.Equal(t, int64(4), st.ChunksFreed)
	require.Equal(t, (st.PagesMapped-st.PagesUnmapped)*format.PageSize, l.FreeBytes())
	require.NoError(t, l.Validate())
}

// TestList_RandomWorkload drives a seeded mix of allocations and frees, checking
// the list invariants and payload integrity after every step.
func TestList_RandomWorkload(t *testing.T) {
	l := NewList(nil)
	rng := rand.New(rand.NewPCG(7, 42))

	type live struct {
		p    unsafe.Pointer
		size int
		tag  byte
	}
	var blocks []live

	for step := range 3000 {
		if len(blocks) > 0 && rng.IntN(5) < 2 {
			i := rng.IntN(len(blocks))
			b := blocks[i]
			requireFilled(t, b.p, b.size, b.tag, fmt.Sprintf("step %d", step))
			require.NoError(t, l.Free(b.p))
			blocks[i] = blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
		} else {
			size := rng.IntN(5000)
			if rng.IntN(4) == 0 {
				size = rng.IntN(64)
			}
			p, err := l.Alloc(size)
			require.NoError(t, err)
			tag := byte(step)
			fill(p, size, tag)
			blocks = append(blocks, live{p: p, size: size, tag: tag})
		}
		require.NoError(t, l.Validate(), "step %d", step)
	}

	for _, b := range blocks {
		requireFilled(t, b.p, b.size, b.tag, "final sweep")
		require.NoError(t, l.Free(b.p))
	}
	require.NoError(t, l.Validate())

	st := l.Stats()
	require.Zero(t, st.InUse())
	require.Equal(t, (st.PagesMapped-st.PagesUnmapped)*format.PageSize, l.FreeBytes(),
		"every list page must be back on the list once nothing is live")
	for _, s := range l.spans() {
		require.Zero(t, s.size%format.PageSize)
	}
}

func TestList_Concurrent(t *testing.T) {
	l := NewList(nil)

	const (
		goroutines = 8
		rounds     = 1000
	)

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for g := range goroutines {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed*31))
			held := make([]unsafe.Pointer, 0, 32)
			for range rounds {
				size := rng.IntN(2048)
				p, err := l.Alloc(size)
				if err != nil {
					errs <- err
					return
				}
				fill(p, size, byte(seed))
				held = append(held, p)
				if len(held) == cap(held) {
					for _, q := range held {
						if err := l.Free(q); err != nil {
							errs <- err
							return
						}
					}
					held = held[:0]
				}
			}
			for _, q := range held {
				if err := l.Free(q); err != nil {
					errs <- err
					return
				}
			}
		}(uint64(g + 1))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	require.NoError(t, l.Validate())
	st := l.Stats()
	require.Equal(t, int64(goroutines*rounds), st.ChunksAllocated)
	require.Equal(t, int64(goroutines*rounds), st.ChunksFreed)
	require.Equal(t, st.PagesMapped*format.PageSize, l.FreeBytes())
}
