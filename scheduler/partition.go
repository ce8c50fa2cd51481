package scheduler

import "sort"

// Slice is one disjoint partition of the tier-sorted universe,
// assigned to one parallel worker identity. Recomputed fresh on every
// invocation, never persisted.
type Slice struct {
	Index       int          `json:"index"`
	TotalSlices int          `json:"total_slices"`
	Members     []Instrument `json:"members"`
}

// Partition splits the universe into totalSlices contiguous slices.
// The universe is stable-sorted by (tier asc, code asc) first, so
// tier-1 codes occupy the lowest indices and early slices are
// tier-dense. Deterministic: the same universe and totalSlices always
// yield the same slices, which is what lets concurrent invocations for
// different slice indices run without coordination.
//
// If totalSlices exceeds the universe size, trailing slices are empty.
func Partition(universe []Instrument, totalSlices int) []Slice {
	if totalSlices < 1 {
		totalSlices = 1
	}

	sorted := make([]Instrument, len(universe))
	copy(sorted, universe)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Tier != sorted[j].Tier {
			return sorted[i].Tier < sorted[j].Tier
		}
		return sorted[i].Code < sorted[j].Code
	})

	perSlice := (len(sorted) + totalSlices - 1) / totalSlices

	slices := make([]Slice, totalSlices)
	for i := 0; i < totalSlices; i++ {
		start := i * perSlice
		end := start + perSlice
		if start > len(sorted) {
			start = len(sorted)
		}
		if end > len(sorted) {
			end = len(sorted)
		}
		slices[i] = Slice{
			Index:       i,
			TotalSlices: totalSlices,
			Members:     sorted[start:end],
		}
	}
	return slices
}
