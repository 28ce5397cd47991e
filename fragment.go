package kebab

import (
	"fmt"
	"sort"
)

// Fragment is a maximal contiguous range of a read whose every k-mer
// tested positive in the index's filter. Positions are zero-based;
// Fragment{Start, Length} covers seq[Start : Start+Length).
type Fragment struct {
	Start  uint64
	Length uint64
}

// End returns the exclusive end position, Start+Length.
func (f Fragment) End() uint64 { return f.Start + f.Length }

// SortFragmentsByLengthDescending sorts fragments in place, longest
// first, for callers that want to prioritize the longest candidates
// (e.g. before handing them to a downstream MEM finder).
func SortFragmentsByLengthDescending(fragments []Fragment) {
	sort.Slice(fragments, func(i, j int) bool {
		return fragments[i].Length > fragments[j].Length
	})
}

// FormatFragmentHeader renders a FASTA header for a fragment using the
// original tool's 1-based inclusive coordinate convention:
// >{name}:[{start1}-{end1}]. This is a convenience for callers; the core
// scan path never writes FASTA itself.
func FormatFragmentHeader(name string, f Fragment) string {
	start1 := f.Start + 1
	end1 := f.Start + f.Length
	return fmt.Sprintf(">%s:[%d-%d]", name, start1, end1)
}
