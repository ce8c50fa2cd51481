package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bucketTime returns a time inside the given bucket for the cadence.
func bucketTime(bucket, cadenceMinutes int) time.Time {
	return rotationEpoch.Add(time.Duration(bucket*cadenceMinutes) * time.Minute)
}

func TestSelectWindow_DeterministicWithinBucket(t *testing.T) {
	sl := Slice{Members: makeUniverse(10, Tier2)}

	early := bucketTime(7, 5)
	late := early.Add(4 * time.Minute) // still bucket 7

	first := SelectWindow(sl, early, 3, 5)
	second := SelectWindow(sl, late, 3, 5)

	assert.Equal(t, first.Offset, second.Offset)
	assert.Equal(t, first.Members, second.Members)
}

func TestSelectWindow_FiveCodesWindowTwo(t *testing.T) {
	sl := Slice{Members: makeUniverse(5, Tier1)}

	tests := []struct {
		bucket     int
		wantOffset int
		wantSize   int
	}{
		{bucket: 0, wantOffset: 0, wantSize: 2},
		{bucket: 1, wantOffset: 2, wantSize: 2},
		{bucket: 2, wantOffset: 4, wantSize: 1}, // clamped tail
		{bucket: 3, wantOffset: 0, wantSize: 2}, // wraps to bucket 0's window
	}

	for _, tt := range tests {
		w := SelectWindow(sl, bucketTime(tt.bucket, 5), 2, 5)
		require.Equal(t, 3, w.CyclesNeeded)
		assert.Equalf(t, tt.wantOffset, w.Offset, "bucket %d offset", tt.bucket)
		assert.Equalf(t, tt.wantSize, w.Size, "bucket %d size", tt.bucket)
	}
}

func TestSelectWindow_CoverageOverOneCycle(t *testing.T) {
	sl := Slice{Members: makeUniverse(23, Tier3)}
	windowSize := 5
	cadence := 15

	probe := SelectWindow(sl, bucketTime(0, cadence), windowSize, cadence)

	seen := map[string]int{}
	for bucket := 0; bucket < probe.CyclesNeeded; bucket++ {
		w := SelectWindow(sl, bucketTime(bucket, cadence), windowSize, cadence)
		for _, inst := range w.Members {
			seen[inst.Code]++
		}
	}

	require.Len(t, seen, len(sl.Members), "one full cycle must visit the whole slice")
	for code, count := range seen {
		assert.Equalf(t, 1, count, "code %s selected once per cycle", code)
	}
}

func TestSelectWindow_EmptySlice(t *testing.T) {
	w := SelectWindow(Slice{}, bucketTime(0, 5), 10, 5)

	assert.True(t, w.Empty)
	assert.Empty(t, w.Members)
}

func TestSelectWindow_WindowLargerThanSlice(t *testing.T) {
	sl := Slice{Members: makeUniverse(3, Tier1)}

	w := SelectWindow(sl, bucketTime(4, 5), 10, 5)

	assert.Equal(t, 1, w.CyclesNeeded)
	assert.Equal(t, 0, w.Offset)
	assert.Equal(t, 3, w.Size)
}
