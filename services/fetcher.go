package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"stock_refresher/models"
)

// Default provider limits
const (
	DefaultFetchBatchSize  = 20
	DefaultFetchBatchDelay = 500 * time.Millisecond
)

// MultiSourceQuoteFetcher fetches quotes for a window of codes from a
// primary batched provider, falling back per code to a secondary
// provider for anything the primary omits. Batches are issued
// sequentially with a fixed delay to stay under per-minute quotas.
type MultiSourceQuoteFetcher struct {
	primary    BatchQuoteProvider
	fallback   SingleQuoteProvider
	batchSize  int
	batchDelay time.Duration
	sleep      func(time.Duration)
}

// NewMultiSourceQuoteFetcher creates a fetcher over the given providers.
// fallback may be nil, in which case codes missing from the primary
// response are failed directly.
func NewMultiSourceQuoteFetcher(primary BatchQuoteProvider, fallback SingleQuoteProvider, batchSize int, batchDelay time.Duration) *MultiSourceQuoteFetcher {
	if batchSize < 1 {
		batchSize = DefaultFetchBatchSize
	}
	if batchDelay < 0 {
		batchDelay = DefaultFetchBatchDelay
	}
	return &MultiSourceQuoteFetcher{
		primary:    primary,
		fallback:   fallback,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		sleep:      time.Sleep,
	}
}

// chunkCodes splits codes into provider-sized batches
func chunkCodes(codes []string, chunkSize int) [][]string {
	var chunks [][]string
	for i := 0; i < len(codes); i += chunkSize {
		end := i + chunkSize
		if end > len(codes) {
			end = len(codes)
		}
		chunks = append(chunks, codes[i:end])
	}
	return chunks
}

// FetchQuotes fetches quotes for the given codes. A code lands in
// failed only when both the primary and the fallback miss it. The
// error return is reserved for a whole-window outage: every primary
// batch errored and the fallback produced nothing usable.
func (f *MultiSourceQuoteFetcher) FetchQuotes(ctx context.Context, codes []string) (map[string]models.Quote, []string, error) {
	quotes := make(map[string]models.Quote, len(codes))
	failed := []string{}

	if len(codes) == 0 {
		return quotes, failed, nil
	}

	batches := chunkCodes(codes, f.batchSize)
	primaryErrors := 0

	for i, batch := range batches {
		batchQuotes, err := f.primary.FetchBatch(ctx, batch)
		if err != nil {
			log.Printf("Primary provider %s batch %d/%d failed: %v", f.primary.Name(), i+1, len(batches), err)
			primaryErrors++
			batchQuotes = nil
		}

		for _, code := range batch {
			quote, ok := batchQuotes[code]
			if ok && quote.Usable() {
				quotes[code] = quote
				continue
			}

			// One fallback call per missing code.
			fbQuote := f.fetchFallback(ctx, code)
			if fbQuote != nil {
				quotes[code] = *fbQuote
			} else {
				failed = append(failed, code)
			}
		}

		// Inter-batch delay to respect the provider quota.
		if i < len(batches)-1 && f.batchDelay > 0 {
			f.sleep(f.batchDelay)
		}
	}

	if primaryErrors == len(batches) && len(quotes) == 0 {
		return quotes, failed, fmt.Errorf("all providers unreachable for %d codes", len(codes))
	}

	return quotes, failed, nil
}

// fetchFallback tries the secondary provider for one code. Returns nil
// when no usable quote could be obtained.
func (f *MultiSourceQuoteFetcher) fetchFallback(ctx context.Context, code string) *models.Quote {
	if f.fallback == nil {
		return nil
	}
	quote, err := f.fallback.FetchQuote(ctx, code)
	if err != nil {
		log.Printf("Fallback provider %s failed for %s: %v", f.fallback.Name(), code, err)
		return nil
	}
	if quote == nil || !quote.Usable() {
		return nil
	}
	return quote
}
