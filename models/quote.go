package models

import "time"

// Quote is the normalized price snapshot returned by quote providers.
// It lives only for the duration of one refresh invocation.
type Quote struct {
	Code          string    `json:"code"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PreviousClose float64   `json:"previous_close"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// Usable reports whether the quote carries a price worth persisting.
// Providers silently omit unsupported symbols or return zeroed rows,
// so a non-positive price counts as a miss.
func (q Quote) Usable() bool {
	return q.Code != "" && q.Price > 0
}

// PriceUpdate pairs a fetched quote with the scheduling metadata
// persisted alongside it.
type PriceUpdate struct {
	Quote        Quote
	Tier         int
	NextUpdateAt time.Time
}

// FailureUpdate marks a code whose fetch failed on both providers.
// The store writes a status-only update so the last good price survives.
type FailureUpdate struct {
	Code   string
	Tier   int
	Reason string
}
