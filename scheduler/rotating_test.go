package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_refresher/models"
)

type stubDirectory struct {
	instruments []Instrument
	err         error
}

func (d *stubDirectory) All() ([]Instrument, error) {
	return d.instruments, d.err
}

type stubFetcher struct {
	failCodes map[string]bool
	err       error
	calls     [][]string
}

func (f *stubFetcher) FetchQuotes(ctx context.Context, codes []string) (map[string]models.Quote, []string, error) {
	f.calls = append(f.calls, append([]string{}, codes...))
	if f.err != nil {
		return nil, nil, f.err
	}

	quotes := make(map[string]models.Quote)
	failed := []string{}
	for _, code := range codes {
		if f.failCodes[code] {
			failed = append(failed, code)
			continue
		}
		quotes[code] = models.Quote{Code: code, Price: 100, Source: "stub", Timestamp: time.Now()}
	}
	return quotes, failed, nil
}

type memoryStore struct {
	upserts    []models.PriceUpdate
	failures   []models.FailureUpdate
	rejectCode string
}

func (s *memoryStore) UpsertQuotes(updates []models.PriceUpdate) (int, []string) {
	updated := 0
	failedCodes := []string{}
	for _, u := range updates {
		if u.Quote.Code == s.rejectCode {
			failedCodes = append(failedCodes, u.Quote.Code)
			continue
		}
		s.upserts = append(s.upserts, u)
		updated++
	}
	return updated, failedCodes
}

func (s *memoryStore) MarkFailed(failures []models.FailureUpdate) error {
	s.failures = append(s.failures, failures...)
	return nil
}

type memoryJobLog struct {
	jobs []models.RefreshJob
}

func (l *memoryJobLog) Write(ctx context.Context, job models.RefreshJob) error {
	l.jobs = append(l.jobs, job)
	return nil
}

// marketOpenTime is a Tuesday 10:00 in the market timezone.
var marketOpenTime = time.Date(2024, 3, 19, 10, 0, 0, 0, time.FixedZone("ICT", 7*60*60))

// marketClosedTime is a Saturday.
var marketClosedTime = time.Date(2024, 3, 16, 10, 0, 0, 0, time.FixedZone("ICT", 7*60*60))

func testConfig() Config {
	cfg := Config{
		TotalSlices: 2,
		WindowSize:  3,
	}
	cfg.CadenceMinutesTier[Tier1] = 5
	cfg.CadenceMinutesTier[Tier2] = 15
	cfg.CadenceMinutesTier[Tier3] = 60
	return cfg
}

func newTestScheduler(cfg Config, dir InstrumentDirectory, fetcher QuoteFetcher, store PriceStore, jobs JobLog, at time.Time) *RotatingScheduler {
	s := NewRotatingScheduler(cfg, dir, fetcher, store, jobs)
	s.SetClock(func() time.Time { return at })
	return s
}

func TestRunSlice_SliceOutOfRange(t *testing.T) {
	s := newTestScheduler(testConfig(), &stubDirectory{}, &stubFetcher{}, &memoryStore{}, nil, marketOpenTime)

	_, err := s.RunSlice(context.Background(), -1, false)
	assert.ErrorIs(t, err, ErrSliceOutOfRange)

	_, err = s.RunSlice(context.Background(), 2, false)
	assert.ErrorIs(t, err, ErrSliceOutOfRange)
}

func TestRunSlice_EmptyUniverse(t *testing.T) {
	s := newTestScheduler(testConfig(), &stubDirectory{}, &stubFetcher{}, &memoryStore{}, nil, marketOpenTime)

	_, err := s.RunSlice(context.Background(), 0, false)
	assert.ErrorIs(t, err, ErrEmptyUniverse)
}

func TestRunSlice_SkippedOutsideMarketHours(t *testing.T) {
	fetcher := &stubFetcher{}
	jobs := &memoryJobLog{}
	s := newTestScheduler(testConfig(), &stubDirectory{instruments: makeUniverse(6, Tier1)}, fetcher, &memoryStore{}, jobs, marketClosedTime)

	result, err := s.RunSlice(context.Background(), 0, false)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, fetcher.calls, "no fetch when skipped")
	assert.Empty(t, jobs.jobs, "no job record when skipped")
}

func TestRunSlice_ForceBypassesGate(t *testing.T) {
	fetcher := &stubFetcher{}
	s := newTestScheduler(testConfig(), &stubDirectory{instruments: makeUniverse(6, Tier1)}, fetcher, &memoryStore{}, nil, marketClosedTime)

	result, err := s.RunSlice(context.Background(), 0, true)

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.NotEmpty(t, fetcher.calls)
}

func TestRunSlice_HappyPath(t *testing.T) {
	fetcher := &stubFetcher{}
	store := &memoryStore{}
	jobs := &memoryJobLog{}
	s := newTestScheduler(testConfig(), &stubDirectory{instruments: makeUniverse(6, Tier1)}, fetcher, store, jobs, marketOpenTime)

	result, err := s.RunSlice(context.Background(), 0, false)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Rotation.StocksInSlice)
	assert.NotEmpty(t, result.JobID)

	require.Len(t, jobs.jobs, 1)
	job := jobs.jobs[0]
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, 3, job.SuccessCount)
	assert.Equal(t, 0, job.FailedCount)
	assert.Equal(t, result.JobID, job.JobID)

	// next_update_at derives from the tier cadence
	for _, u := range store.upserts {
		assert.Equal(t, marketOpenTime.Add(5*time.Minute), u.NextUpdateAt)
	}
}

func TestRunSlice_FailureIsolation(t *testing.T) {
	universe := []Instrument{
		{Code: "AAA", Tier: Tier1},
		{Code: "BBB", Tier: Tier1},
		{Code: "CCC", Tier: Tier1},
	}
	cfg := testConfig()
	cfg.TotalSlices = 1

	fetcher := &stubFetcher{failCodes: map[string]bool{"BBB": true}}
	store := &memoryStore{}
	jobs := &memoryJobLog{}
	s := newTestScheduler(cfg, &stubDirectory{instruments: universe}, fetcher, store, jobs, marketOpenTime)

	result, err := s.RunSlice(context.Background(), 0, false)

	require.NoError(t, err, "per-code failures never fail the invocation")
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"BBB"}, result.FailedCodes)

	upserted := []string{}
	for _, u := range store.upserts {
		upserted = append(upserted, u.Quote.Code)
	}
	assert.ElementsMatch(t, []string{"AAA", "CCC"}, upserted)

	require.Len(t, store.failures, 1)
	assert.Equal(t, "BBB", store.failures[0].Code)
	assert.Equal(t, Tier1, store.failures[0].Tier)

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, "completed", jobs.jobs[0].Status)
	assert.Equal(t, 1, jobs.jobs[0].FailedCount)
}

func TestRunSlice_FatalFetchError(t *testing.T) {
	cfg := testConfig()
	cfg.TotalSlices = 1

	fetcher := &stubFetcher{err: errors.New("providers unreachable")}
	jobs := &memoryJobLog{}
	s := newTestScheduler(cfg, &stubDirectory{instruments: makeUniverse(4, Tier2)}, fetcher, &memoryStore{}, jobs, marketOpenTime)

	result, err := s.RunSlice(context.Background(), 0, false)

	require.Error(t, err)
	assert.NotEmpty(t, result.JobID, "job id must survive for correlation")

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, "failed", jobs.jobs[0].Status)
	assert.Equal(t, result.JobID, jobs.jobs[0].JobID)
}

func TestRunSlice_IdempotentWithinBucket(t *testing.T) {
	cfg := testConfig()
	cfg.TotalSlices = 1

	universe := makeUniverse(9, Tier1)
	at := rotationEpoch.Add(50 * time.Minute)

	fetcher := &stubFetcher{}
	s := newTestScheduler(cfg, &stubDirectory{instruments: universe}, fetcher, &memoryStore{}, nil, at)

	_, err := s.RunSlice(context.Background(), 0, true)
	require.NoError(t, err)

	// Retry two minutes later, still in the same 5-minute bucket.
	s.SetClock(func() time.Time { return at.Add(2 * time.Minute) })
	_, err = s.RunSlice(context.Background(), 0, true)
	require.NoError(t, err)

	require.Len(t, fetcher.calls, 2)
	assert.Equal(t, fetcher.calls[0], fetcher.calls[1], "same bucket selects the same window")
}

func TestRunSlice_EmptySliceIsNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.TotalSlices = 5

	fetcher := &stubFetcher{}
	jobs := &memoryJobLog{}
	s := newTestScheduler(cfg, &stubDirectory{instruments: makeUniverse(3, Tier1)}, fetcher, &memoryStore{}, jobs, marketOpenTime)

	result, err := s.RunSlice(context.Background(), 4, false)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, fetcher.calls)
	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, "completed", jobs.jobs[0].Status)
	assert.Equal(t, 0, jobs.jobs[0].TotalInstruments)
}

// TestTierRefreshMonotonicity simulates external triggers firing each
// slice at its own cadence over a long horizon and checks that tier-1
// codes are refreshed at least as often as tier-3 codes.
func TestTierRefreshMonotonicity(t *testing.T) {
	universe := make([]Instrument, 0, 16)
	for i := 0; i < 8; i++ {
		universe = append(universe, Instrument{Code: fmt.Sprintf("T1_%02d", i), Tier: Tier1})
	}
	for i := 0; i < 8; i++ {
		universe = append(universe, Instrument{Code: fmt.Sprintf("T3_%02d", i), Tier: Tier3})
	}

	cfg := Config{TotalSlices: 2, WindowSize: 4}
	cfg.CadenceMinutesTier[Tier1] = 5
	cfg.CadenceMinutesTier[Tier2] = 15
	cfg.CadenceMinutesTier[Tier3] = 60

	fetchCounts := map[string]int{}
	fetcher := &stubFetcher{}
	s := NewRotatingScheduler(cfg, &stubDirectory{instruments: universe}, fetcher, &memoryStore{}, nil)

	horizon := 600 // minutes
	for minute := 0; minute <= horizon; minute++ {
		at := rotationEpoch.Add(time.Duration(minute) * time.Minute)
		s.SetClock(func() time.Time { return at })

		// Slice 0 is all tier 1, slice 1 all tier 3; each external
		// trigger fires at its slice's cadence.
		if minute%cfg.CadenceMinutesTier[Tier1] == 0 {
			_, err := s.RunSlice(context.Background(), 0, true)
			require.NoError(t, err)
		}
		if minute%cfg.CadenceMinutesTier[Tier3] == 0 {
			_, err := s.RunSlice(context.Background(), 1, true)
			require.NoError(t, err)
		}
	}

	for _, call := range fetcher.calls {
		for _, code := range call {
			fetchCounts[code]++
		}
	}

	minTier1 := -1
	maxTier3 := 0
	for code, count := range fetchCounts {
		switch code[:2] {
		case "T1":
			if minTier1 == -1 || count < minTier1 {
				minTier1 = count
			}
		case "T3":
			if count > maxTier3 {
				maxTier3 = count
			}
		}
	}

	require.Greater(t, minTier1, 0, "every tier-1 code must be refreshed")
	require.Greater(t, maxTier3, 0, "every tier-3 code must be refreshed")
	assert.GreaterOrEqual(t, minTier1, maxTier3,
		"tier-1 codes must refresh at least as often as tier-3 codes")
}
