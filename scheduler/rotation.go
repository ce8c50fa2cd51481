package scheduler

import "time"

// rotationEpoch is the fixed reference for time bucketing. Any fixed
// point in the past works; changing it shifts which window each bucket
// selects but preserves the coverage cycle.
var rotationEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// RotationWindow is the sub-range of a slice selected for the current
// invocation. Computed, used and discarded within one invocation.
type RotationWindow struct {
	Offset       int          `json:"offset"`
	Size         int          `json:"size"`
	CycleIndex   int          `json:"cycle_index"`
	CyclesNeeded int          `json:"cycles_needed"`
	Empty        bool         `json:"empty"`
	Members      []Instrument `json:"-"`
}

// SelectWindow picks the window of a slice to refresh at the given
// time. The bucket index is floor(minutes since epoch / cadence), so
// any two invocations landing in the same bucket select the same
// window (idempotent retries), and consecutive buckets walk the slice
// end to end: over CyclesNeeded buckets every member is visited
// exactly once.
func SelectWindow(s Slice, now time.Time, windowSize, cadenceMinutes int) RotationWindow {
	if len(s.Members) == 0 {
		return RotationWindow{Empty: true}
	}
	if windowSize < 1 {
		windowSize = 1
	}
	if cadenceMinutes < 1 {
		cadenceMinutes = 1
	}

	cyclesNeeded := (len(s.Members) + windowSize - 1) / windowSize
	timeBucket := int(now.Sub(rotationEpoch).Minutes()) / cadenceMinutes
	cycleIndex := timeBucket % cyclesNeeded

	offset := cycleIndex * windowSize
	end := offset + windowSize
	if end > len(s.Members) {
		end = len(s.Members)
	}

	return RotationWindow{
		Offset:       offset,
		Size:         end - offset,
		CycleIndex:   cycleIndex,
		CyclesNeeded: cyclesNeeded,
		Members:      s.Members[offset:end],
	}
}
