package alloc

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteStats renders s as a short text report. Counts are printed with digit
// grouping so large runs stay readable.
//
//	== bucket allocator stats ==
//	Mapped:   1,250
//	Unmapped: 4
//	Allocs:   1,000,000
//	Frees:    1,000,000
//	Freelen:  13,120
func WriteStats(w io.Writer, title string, s Stats) error {
	p := message.NewPrinter(language.English)
	if _, err := p.Fprintf(w, "== %s stats ==\n", title); err != nil {
		return err
	}
	rows := []struct {
		label string
		value int64
	}{
		{"Mapped:", s.PagesMapped},
		{"Unmapped:", s.PagesUnmapped},
		{"Allocs:", s.ChunksAllocated},
		{"Frees:", s.ChunksFreed},
		{"Freelen:", s.FreeListLength},
	}
	for _, r := range rows {
		if _, err := p.Fprintf(w, "%-9s %d\n", r.label, r.value); err != nil {
			return err
		}
	}
	return nil
}
