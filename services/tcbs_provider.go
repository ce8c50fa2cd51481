package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stock_refresher/models"
)

// TCBSQuoteAPIURL is the endpoint for single-ticker quotes
const TCBSQuoteAPIURL = "https://apipubaws.tcbs.com.vn/stock-insight/v1/stock/second-tc-price?tickers="

// TCBSQuoteResponse represents the response from TCBS API
type TCBSQuoteResponse struct {
	Data []TCBSQuoteData `json:"data"`
}

// TCBSQuoteData represents price data from TCBS API
type TCBSQuoteData struct {
	Ticker           string  `json:"t"`
	Price            float64 `json:"cp"`
	PriceChange      float64 `json:"ch"`
	PriceChangeRatio float64 `json:"r"`
	RefPrice         float64 `json:"rp"`
	OpenPrice        float64 `json:"op"`
	HighestPrice     float64 `json:"hp"`
	LowestPrice      float64 `json:"lp"`
	Vol              float64 `json:"vol"`
}

// TCBSProvider fetches quotes one ticker at a time from the TCBS API.
// It covers listings the SSI batch endpoint omits, which makes it the
// per-code fallback provider.
type TCBSProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewTCBSProvider creates a TCBS quote provider.
func NewTCBSProvider() *TCBSProvider {
	return &TCBSProvider{
		baseURL: TCBSQuoteAPIURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the provider identifier stored in data_source.
func (p *TCBSProvider) Name() string {
	return "tcbs"
}

// FetchQuote fetches the quote for one ticker.
func (p *TCBSProvider) FetchQuote(ctx context.Context, code string) (*models.Quote, error) {
	url := p.baseURL + strings.ToUpper(code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from TCBS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TCBS API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response TCBSQuoteResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no quote data for %s", code)
	}

	data := response.Data[0]
	return &models.Quote{
		Code:          strings.ToUpper(code),
		Price:         data.Price,
		Change:        data.PriceChange,
		ChangePercent: data.PriceChangeRatio,
		PreviousClose: data.RefPrice,
		Open:          data.OpenPrice,
		High:          data.HighestPrice,
		Low:           data.LowestPrice,
		Volume:        data.Vol,
		Source:        p.Name(),
		Timestamp:     time.Now(),
	}, nil
}
