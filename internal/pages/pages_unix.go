//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pages

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapAnon maps a private anonymous region. The kernel hands back zeroed pages.
func mapAnon(length int) (unsafe.Pointer, error) {
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(unsafe.SliceData(mem)), nil
}

// unmapAnon rebuilds the slice unix.Mmap returned so that Munmap can find the
// mapping it registered; base and length must match the Map call.
func unmapAnon(p unsafe.Pointer, length int) error {
	return unix.Munmap(unsafe.Slice((*byte)(p), length))
}
