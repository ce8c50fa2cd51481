package services

import (
	"context"

	"stock_refresher/models"
)

// BatchQuoteProvider fetches quotes for many codes in one call.
// Providers silently omit codes they do not cover (stapled or
// secondary listings, odd symbol formats) instead of erroring, so
// callers must diff the response against the request.
type BatchQuoteProvider interface {
	Name() string
	FetchBatch(ctx context.Context, codes []string) (map[string]models.Quote, error)
}

// SingleQuoteProvider fetches one quote per call, used as the fallback
// for codes the batch provider omits.
type SingleQuoteProvider interface {
	Name() string
	FetchQuote(ctx context.Context, code string) (*models.Quote, error)
}
