//go:build unix && (amd64 || arm64)

package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// hugeRequest needs more address space than a 64-bit process can map, so the
// kernel refuses it even with overcommit enabled.
const hugeRequest = 1 << 52

func TestWorker_RefusedMappingIsOutOfMemory(t *testing.T) {
	_, w := newTestWorker(t, nil)
	before := w.Stats()

	p, err := w.Alloc(hugeRequest)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorContains(t, err, "pages: map")
	require.Nil(t, p)

	st := w.Stats()
	require.Equal(t, before.PagesMapped, st.PagesMapped)
	require.Equal(t, before.ChunksAllocated, st.ChunksAllocated)
	require.Equal(t, before.FreeListLength, st.FreeListLength)
	require.NoError(t, w.Validate())

	p, err = w.Alloc(40)
	require.NoError(t, err, "worker stays usable after a refused mapping")
	require.NoError(t, w.Free(p))
}

func TestList_RefusedMappingIsOutOfMemory(t *testing.T) {
	l := NewList(nil)
	p, err := l.Alloc(100)
	require.NoError(t, err)
	before := l.Stats()

	huge, err := l.Alloc(hugeRequest)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorContains(t, err, "pages: map")
	require.Nil(t, huge)

	st := l.Stats()
	require.Equal(t, before.PagesMapped, st.PagesMapped)
	require.Equal(t, before.ChunksAllocated, st.ChunksAllocated)
	require.Equal(t, before.FreeListLength, st.FreeListLength)
	require.NoError(t, l.Validate())

	require.NoError(t, l.Free(p))
}
