//go:build windows

package pages

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// mapAnon reserves and commits a read/write region. VirtualAlloc returns zeroed
// memory aligned to the allocation granularity, which is a multiple of Size.
func mapAnon(length int) (unsafe.Pointer, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(length), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(addr), nil
}

// unmapAnon releases the whole reservation; MEM_RELEASE requires a zero size.
func unmapAnon(p unsafe.Pointer, _ int) error {
	return windows.VirtualFree(uintptr(p), 0, windows.MEM_RELEASE)
}
