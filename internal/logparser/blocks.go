package logparser

import "sort"

// Range is a half-open line index range [Start, End). Start may be negative
// and End may run past the end of the log; BlockMarker clamps on Mark.
type Range struct {
	Start int
	End   int
}

// Block is a merged, disjoint range of line indexes [Min, Max).
type Block struct {
	Min int
	Max int
}

// Len returns the number of lines the block covers.
func (b Block) Len() int {
	return b.Max - b.Min
}

// BlockMarker collects marked ranges and merges them into blocks.
type BlockMarker struct {
	ranges []Range
}

// Mark records [start, end). Start is clamped to 0; empty ranges are ignored.
func (m *BlockMarker) Mark(start, end int) {
	start = max(start, 0)
	if end <= start {
		return
	}
	m.ranges = append(m.ranges, Range{Start: start, End: end})
}

// MarkRange is Mark for a Range value.
func (m *BlockMarker) MarkRange(r Range) {
	m.Mark(r.Start, r.End)
}

// Blocks returns the marked ranges merged into sorted, disjoint blocks.
// Ranges that overlap or touch are unioned.
func (m *BlockMarker) Blocks() []Block {
	if len(m.ranges) == 0 {
		return nil
	}

	sorted := make([]Range, len(m.ranges))
	copy(sorted, m.ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var blocks []Block
	cur := Block{Min: sorted[0].Start, Max: sorted[0].End}
	for _, r := range sorted[1:] {
		if r.Start <= cur.Max {
			cur.Max = max(cur.Max, r.End)
			continue
		}
		blocks = append(blocks, cur)
		cur = Block{Min: r.Start, Max: r.End}
	}
	return append(blocks, cur)
}
