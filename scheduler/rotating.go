package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"stock_refresher/models"
)

// Configuration errors, rejected before any work is logged.
var (
	ErrSliceOutOfRange = errors.New("slice index out of range")
	ErrEmptyUniverse   = errors.New("instrument universe is empty")
)

// InstrumentDirectory supplies the static universe with tiers assigned.
type InstrumentDirectory interface {
	All() ([]Instrument, error)
}

// QuoteFetcher fetches quotes for a window of codes. The returned map
// holds usable quotes keyed by code; failed holds codes that neither
// provider could serve. A non-nil error means the providers were
// unreachable for the whole window and the invocation must fail.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, codes []string) (quotes map[string]models.Quote, failed []string, err error)
}

// PriceStore persists fetched quotes and failure markers.
type PriceStore interface {
	UpsertQuotes(updates []models.PriceUpdate) (updated int, failedCodes []string)
	MarkFailed(failures []models.FailureUpdate) error
}

// JobLog records one audit entry per invocation.
type JobLog interface {
	Write(ctx context.Context, job models.RefreshJob) error
}

// QuoteBroadcaster pushes freshly written quotes to live subscribers.
// Optional; a nil broadcaster disables it.
type QuoteBroadcaster interface {
	BroadcastQuotes(quotes []models.Quote)
}

// MarketCapSink absorbs the market-cap snapshot carried in provider
// payloads, so tier assignments track the market without a separate
// fetch. Optional.
type MarketCapSink interface {
	UpdateMarketCaps(caps map[string]float64) error
}

// Config holds the rotation parameters. All values come from the
// environment; nothing here is derived from stored state.
type Config struct {
	TotalSlices int
	WindowSize  int
	// CadenceMinutesTier is indexed by tier (1-3); index 0 is unused.
	CadenceMinutesTier [4]int
}

// RotationSummary describes the window selected for one invocation.
type RotationSummary struct {
	Offset        int `json:"offset"`
	StocksInSlice int `json:"stocks_in_slice"`
	CycleIndex    int `json:"cycle_index"`
	CyclesNeeded  int `json:"cycles_needed"`
}

// RunResult is the structured outcome of one refresh invocation.
type RunResult struct {
	Skipped     bool            `json:"skipped"`
	Slice       int             `json:"slice"`
	Rotation    RotationSummary `json:"rotation"`
	Updated     int             `json:"updated"`
	Failed      int             `json:"failed"`
	FailedCodes []string        `json:"failed_codes"`
	JobID       string          `json:"job_id,omitempty"`
}

// RotatingScheduler orchestrates one stateless refresh invocation:
// gate, partition, rotate, fetch, persist, audit. One instance serves
// any data domain; the fetch capability and cadence config are the
// only domain-specific parts.
type RotatingScheduler struct {
	cfg         Config
	directory   InstrumentDirectory
	fetcher     QuoteFetcher
	store       PriceStore
	jobs        JobLog
	gate        *MarketHoursGate
	broadcaster QuoteBroadcaster
	capSink     MarketCapSink
	now         func() time.Time
}

// NewRotatingScheduler creates a scheduler. jobs and broadcaster may be
// nil; gate defaults to the Vietnamese market calendar.
func NewRotatingScheduler(cfg Config, directory InstrumentDirectory, fetcher QuoteFetcher, store PriceStore, jobs JobLog) *RotatingScheduler {
	return &RotatingScheduler{
		cfg:       cfg,
		directory: directory,
		fetcher:   fetcher,
		store:     store,
		jobs:      jobs,
		gate:      NewMarketHoursGate(),
		now:       time.Now,
	}
}

// SetBroadcaster attaches a live quote broadcaster.
func (s *RotatingScheduler) SetBroadcaster(b QuoteBroadcaster) {
	s.broadcaster = b
}

// SetMarketCapSink attaches a sink for market caps seen in quotes.
func (s *RotatingScheduler) SetMarketCapSink(sink MarketCapSink) {
	s.capSink = sink
}

// SetGate replaces the market-hours gate.
func (s *RotatingScheduler) SetGate(g *MarketHoursGate) {
	s.gate = g
}

// SetClock replaces the time source, used by tests and retro-runs.
func (s *RotatingScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Config returns the rotation parameters in use.
func (s *RotatingScheduler) Config() Config {
	return s.cfg
}

// Slices returns the current partition of the universe, for diagnostics.
func (s *RotatingScheduler) Slices() ([]Slice, error) {
	universe, err := s.directory.All()
	if err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}
	return Partition(universe, s.cfg.TotalSlices), nil
}

// sliceCadence returns the cadence for a slice: the cadence of its
// most important member. Members are tier-sorted, so that is the first
// one. A slice straddling a tier boundary refreshes its tail at the
// faster cadence, which keeps tier frequencies monotonic.
func (s *RotatingScheduler) sliceCadence(sl Slice) int {
	if len(sl.Members) == 0 {
		return s.cfg.CadenceMinutesTier[Tier3]
	}
	tier := sl.Members[0].Tier
	if tier < Tier1 || tier > Tier3 {
		tier = Tier3
	}
	return s.cfg.CadenceMinutesTier[tier]
}

// RunSlice executes one refresh invocation for the given slice index.
// Per-code failures are counted and reported but never fail the
// invocation; only a whole-window fetch outage does. The returned
// RunResult is valid even when err is non-nil and carries the job id
// for correlation.
func (s *RotatingScheduler) RunSlice(ctx context.Context, sliceIndex int, force bool) (*RunResult, error) {
	result := &RunResult{Slice: sliceIndex, FailedCodes: []string{}}

	if sliceIndex < 0 || sliceIndex >= s.cfg.TotalSlices {
		return result, fmt.Errorf("%w: %d (total slices %d)", ErrSliceOutOfRange, sliceIndex, s.cfg.TotalSlices)
	}

	now := s.now()
	if !force && !s.gate.IsOpen(now) {
		result.Skipped = true
		return result, nil
	}

	universe, err := s.directory.All()
	if err != nil {
		return result, fmt.Errorf("failed to load universe: %w", err)
	}
	if len(universe) == 0 {
		return result, ErrEmptyUniverse
	}

	slices := Partition(universe, s.cfg.TotalSlices)
	sl := slices[sliceIndex]

	window := SelectWindow(sl, now, s.cfg.WindowSize, s.sliceCadence(sl))
	result.Rotation = RotationSummary{
		Offset:        window.Offset,
		StocksInSlice: len(sl.Members),
		CycleIndex:    window.CycleIndex,
		CyclesNeeded:  window.CyclesNeeded,
	}

	// Job record opens on entry to the running state.
	job := models.RefreshJob{
		JobID:            uuid.NewString(),
		Slice:            sliceIndex,
		StartedAt:        now,
		TotalInstruments: window.Size,
	}
	result.JobID = job.JobID

	if window.Empty {
		s.closeJob(ctx, &job, "completed")
		return result, nil
	}

	codes := make([]string, 0, len(window.Members))
	tierByCode := make(map[string]int, len(window.Members))
	for _, inst := range window.Members {
		codes = append(codes, inst.Code)
		tierByCode[inst.Code] = inst.Tier
	}

	quotes, fetchFailed, err := s.fetcher.FetchQuotes(ctx, codes)
	if err != nil {
		job.FailedCount = len(codes)
		job.FailedCodes = codes
		s.closeJob(ctx, &job, "failed")
		result.Failed = len(codes)
		result.FailedCodes = codes
		return result, fmt.Errorf("quote fetch failed for slice %d: %w", sliceIndex, err)
	}

	updates := make([]models.PriceUpdate, 0, len(quotes))
	broadcast := make([]models.Quote, 0, len(quotes))
	for _, inst := range window.Members {
		quote, ok := quotes[inst.Code]
		if !ok {
			continue
		}
		cadence := s.cfg.CadenceMinutesTier[inst.Tier]
		updates = append(updates, models.PriceUpdate{
			Quote:        quote,
			Tier:         inst.Tier,
			NextUpdateAt: now.Add(time.Duration(cadence) * time.Minute),
		})
		broadcast = append(broadcast, quote)
	}

	updated, persistFailed := s.store.UpsertQuotes(updates)

	failures := make([]models.FailureUpdate, 0, len(fetchFailed))
	for _, code := range fetchFailed {
		failures = append(failures, models.FailureUpdate{
			Code:   code,
			Tier:   tierByCode[code],
			Reason: "all providers failed",
		})
	}
	if len(failures) > 0 {
		if err := s.store.MarkFailed(failures); err != nil {
			log.Printf("Failed to mark failed codes for slice %d: %v", sliceIndex, err)
		}
	}

	allFailed := append(append([]string{}, fetchFailed...), persistFailed...)

	result.Updated = updated
	result.Failed = len(allFailed)
	result.FailedCodes = allFailed

	job.SuccessCount = updated
	job.FailedCount = len(allFailed)
	job.FailedCodes = allFailed
	s.closeJob(ctx, &job, "completed")

	if s.broadcaster != nil && len(broadcast) > 0 {
		s.broadcaster.BroadcastQuotes(broadcast)
	}

	if s.capSink != nil {
		caps := make(map[string]float64)
		for _, quote := range quotes {
			if quote.MarketCap > 0 {
				caps[quote.Code] = quote.MarketCap
			}
		}
		if len(caps) > 0 {
			if err := s.capSink.UpdateMarketCaps(caps); err != nil {
				log.Printf("Failed to update market caps for slice %d: %v", sliceIndex, err)
			}
		}
	}

	return result, nil
}

// closeJob finalizes and writes the job record. Audit failures are
// logged, never propagated.
func (s *RotatingScheduler) closeJob(ctx context.Context, job *models.RefreshJob, status string) {
	job.CompletedAt = s.now()
	job.Status = status
	if job.FailedCodes == nil {
		job.FailedCodes = []string{}
	}
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Write(ctx, *job); err != nil {
		log.Printf("Failed to write job record %s: %v", job.JobID, err)
	}
}
