package format

import "unsafe"

// WriteHeader stamps size into the first word of block and returns the payload
// pointer the caller hands out.
func WriteHeader(block unsafe.Pointer, size int) unsafe.Pointer {
	*(*uintptr)(block) = uintptr(size)
	return unsafe.Add(block, HeaderSize)
}

// ReadHeader recovers the block start and the recorded total size from a payload
// pointer previously returned by WriteHeader.
func ReadHeader(payload unsafe.Pointer) (block unsafe.Pointer, size int) {
	block = unsafe.Add(payload, -HeaderSize)
	return block, int(*(*uintptr)(block))
}

// Payload returns the usable bytes of the block behind payload: everything after
// the header up to the recorded size.
func Payload(payload unsafe.Pointer) []byte {
	_, size := ReadHeader(payload)
	return unsafe.Slice((*byte)(payload), size-HeaderSize)
}
