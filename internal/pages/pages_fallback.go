//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package pages

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/joshuapare/hmalloc/internal/format"
)

// Without an anonymous mapping primitive, regions come from the Go heap. The
// registry keeps them reachable because the allocators only hold raw addresses.
var (
	regionsMu sync.Mutex
	regions   = map[uintptr][]byte{}
)

func mapAnon(length int) (unsafe.Pointer, error) {
	raw := make([]byte, length+Size)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	off := format.AlignPage(int(base)) - int(base)
	p := unsafe.Pointer(&raw[off])

	regionsMu.Lock()
	regions[uintptr(p)] = raw
	regionsMu.Unlock()
	return p, nil
}

func unmapAnon(p unsafe.Pointer, _ int) error {
	regionsMu.Lock()
	defer regionsMu.Unlock()
	if _, ok := regions[uintptr(p)]; !ok {
		return errors.New("region not mapped")
	}
	delete(regions, uintptr(p))
	return nil
}
