package scheduler

// Priority tiers. Tier 1 refreshes most frequently.
const (
	Tier1 = 1
	Tier2 = 2
	Tier3 = 3
)

// Instrument is one tracked code with its assigned priority tier.
type Instrument struct {
	Code string `json:"code"`
	Tier int    `json:"tier"`
}

// TierThresholds holds the market-cap cutoffs (VND) for tier assignment.
type TierThresholds struct {
	Tier1MarketCap float64
	Tier2MarketCap float64
}

// TierClassifier assigns a priority tier to each code from static
// inputs: the core membership list (VN30) and a market-cap snapshot.
type TierClassifier struct {
	core       map[string]bool
	marketCaps map[string]float64
	thresholds TierThresholds
}

// NewTierClassifier creates a classifier over the given core list and
// market-cap snapshot. A nil snapshot is valid: everything outside the
// core list falls to tier 3.
func NewTierClassifier(coreCodes []string, marketCaps map[string]float64, thresholds TierThresholds) *TierClassifier {
	core := make(map[string]bool, len(coreCodes))
	for _, code := range coreCodes {
		core[code] = true
	}
	return &TierClassifier{
		core:       core,
		marketCaps: marketCaps,
		thresholds: thresholds,
	}
}

// Classify returns the tier for a code. Rule order, first match wins:
// core list, tier-1 market cap, tier-2 market cap, otherwise tier 3.
// Unknown or malformed market caps are treated as absent, never an error.
func (tc *TierClassifier) Classify(code string) int {
	if tc.core[code] {
		return Tier1
	}

	cap, ok := tc.marketCaps[code]
	if !ok || cap != cap || cap <= 0 { // cap != cap filters NaN
		return Tier3
	}

	if tc.thresholds.Tier1MarketCap > 0 && cap >= tc.thresholds.Tier1MarketCap {
		return Tier1
	}
	if tc.thresholds.Tier2MarketCap > 0 && cap >= tc.thresholds.Tier2MarketCap {
		return Tier2
	}
	return Tier3
}
