package scheduler

// Package scheduler decides which subset of the tracked stock universe
// is refreshed on each invocation. It handles:
// - Priority tier classification (core list + market-cap thresholds)
// - Deterministic partitioning of the universe into disjoint slices
// - Time-bucketed rotation of a small window through each slice
// - Market-hours gating for the Vietnamese exchanges
// - Orchestration of fetch, persistence and job auditing per invocation
//
// Every invocation is stateless: the work assignment is derived purely
// from wall-clock time and static configuration, so concurrent
// invocations for different slices never coordinate.
