package scheduler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierClassifier_Classify(t *testing.T) {
	thresholds := TierThresholds{
		Tier1MarketCap: 50_000_000_000_000,
		Tier2MarketCap: 5_000_000_000_000,
	}
	caps := map[string]float64{
		"BIG": 60_000_000_000_000,
		"MID": 10_000_000_000_000,
		"SML": 1_000_000_000_000,
		"NEG": -5,
		"NAN": math.NaN(),
	}
	tc := NewTierClassifier([]string{"VNM", "SML"}, caps, thresholds)

	tests := []struct {
		name string
		code string
		want int
	}{
		{
			name: "core list code is tier 1",
			code: "VNM",
			want: Tier1,
		},
		{
			name: "core list wins over small market cap",
			code: "SML",
			want: Tier1,
		},
		{
			name: "market cap above tier-1 threshold",
			code: "BIG",
			want: Tier1,
		},
		{
			name: "market cap above tier-2 threshold",
			code: "MID",
			want: Tier2,
		},
		{
			name: "unknown code falls to tier 3",
			code: "XYZ",
			want: Tier3,
		},
		{
			name: "negative market cap treated as absent",
			code: "NEG",
			want: Tier3,
		},
		{
			name: "NaN market cap treated as absent",
			code: "NAN",
			want: Tier3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tc.Classify(tt.code))
		})
	}
}

func TestTierClassifier_NilSnapshot(t *testing.T) {
	tc := NewTierClassifier([]string{"ACB"}, nil, TierThresholds{
		Tier1MarketCap: 1,
		Tier2MarketCap: 1,
	})

	assert.Equal(t, Tier1, tc.Classify("ACB"))
	assert.Equal(t, Tier3, tc.Classify("HPG"))
}
