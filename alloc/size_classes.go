package alloc

import (
	"math/bits"

	"github.com/joshuapare/hmalloc/internal/format"
)

// NumClasses is the number of segregated buckets used by the bucket strategy.
const NumClasses = 8

// minClassShift is log2 of the smallest class (32 bytes).
const minClassShift = 5

// classSizes holds the block size of every bucket, in ascending order.
//
//	Class 0:   32 bytes
//	Class 1:   64 bytes
//	Class 2:  128 bytes
//	Class 3:  256 bytes
//	Class 4:  512 bytes
//	Class 5: 1024 bytes
//	Class 6: 2048 bytes
//	Class 7: 4096 bytes
//
// Blocks above the last class are mapped directly.
var classSizes = [NumClasses]int{32, 64, 128, 256, 512, 1024, 2048, 4096}

// maxClassSize is the largest block served from a bucket.
const maxClassSize = format.PageSize

// bucketSizeFor rounds total up to the smallest class that can hold it.
// Callers guarantee total <= maxClassSize.
func bucketSizeFor(total int) int {
	size := classSizes[0]
	for size < total {
		size <<= 1
	}
	return size
}

// bucketIndex returns the bucket index for a class size: log2(size) - 5.
// Callers guarantee size is one of classSizes.
func bucketIndex(size int) int {
	return bits.Len(uint(size)) - 1 - minClassShift
}

// classIndex returns the bucket holding blocks of exactly size bytes.
func classIndex(size int) (int, bool) {
	if size < classSizes[0] || size > maxClassSize || size&(size-1) != 0 {
		return 0, false
	}
	idx := bucketIndex(size)
	return idx, classSizes[idx] == size
}

// ClassSizes returns the block size of every bucket in ascending order.
func ClassSizes() []int {
	out := make([]int, NumClasses)
	copy(out, classSizes[:])
	return out
}

// ClassFor reports how the bucket strategy serves a payload of size bytes: the
// total block size reserved (header included), the bucket index, and whether the
// request bypasses the buckets and is mapped directly (index is -1 then).
//
// Examples:
//
//	ClassFor(40)   → 64, 1, false
//	ClassFor(4088) → 4096, 7, false
//	ClassFor(8000) → 8192, -1, true
func ClassFor(size int) (blockSize, index int, direct bool) {
	total := size + format.HeaderSize
	if total > maxClassSize {
		return format.AlignPage(total), -1, true
	}
	if total < format.MinCellSize {
		total = format.MinCellSize
	}
	blockSize = bucketSizeFor(total)
	return blockSize, bucketIndex(blockSize), false
}
