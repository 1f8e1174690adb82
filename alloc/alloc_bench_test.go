package alloc

import (
	"testing"
	"unsafe"
)

// benchSizes mixes small, mid and page-crossing requests.
var benchSizes = []int{16, 40, 100, 250, 600, 1500, 3000, 9000}

func benchAllocFree(b *testing.B, a Allocator) {
	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		p, err := a.Alloc(benchSizes[i%len(benchSizes)])
		if err != nil {
			b.Fatal(err)
		}
		if err := a.Free(p); err != nil {
			b.Fatal(err)
		}
	}
}

func benchChurn(b *testing.B, a Allocator) {
	held := make([]unsafe.Pointer, 256)

	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		slot := (i * 7) % len(held)
		if held[slot] != nil {
			if err := a.Free(held[slot]); err != nil {
				b.Fatal(err)
			}
		}
		p, err := a.Alloc(benchSizes[i%(len(benchSizes)-1)])
		if err != nil {
			b.Fatal(err)
		}
		held[slot] = p
	}

	b.StopTimer()
	for _, p := range held {
		if p != nil {
			_ = a.Free(p)
		}
	}
}

func BenchmarkWorker_AllocFree(b *testing.B) {
	w, err := NewBucket(nil).NewWorker()
	if err != nil {
		b.Fatal(err)
	}
	benchAllocFree(b, w)
}

func BenchmarkList_AllocFree(b *testing.B) {
	benchAllocFree(b, NewList(nil))
}

func BenchmarkWorker_Churn(b *testing.B) {
	w, err := NewBucket(nil).NewWorker()
	if err != nil {
		b.Fatal(err)
	}
	benchChurn(b, w)
}

func BenchmarkList_Churn(b *testing.B) {
	benchChurn(b, NewList(nil))
}

func BenchmarkWorker_Parallel(b *testing.B) {
	a := NewBucket(nil)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		w, err := a.NewWorker()
		if err != nil {
			b.Error(err)
			return
		}
		i := 0
		for pb.Next() {
			p, err := w.Alloc(benchSizes[i%len(benchSizes)])
			if err != nil {
				b.Error(err)
				return
			}
			_ = w.Free(p)
			i++
		}
	})
}

func BenchmarkList_Parallel(b *testing.B) {
	l := NewList(nil)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			p, err := l.Alloc(benchSizes[i%len(benchSizes)])
			if err != nil {
				b.Error(err)
				return
			}
			_ = l.Free(p)
			i++
		}
	})
}
