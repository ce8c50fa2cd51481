package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"stock_refresher/models"
)

// SSIQuoteAPIURL is the endpoint for batched stock quotes
const SSIQuoteAPIURL = "https://iboard-query.ssi.com.vn/v2/stock/symbols/"

// SSIQuoteResponse represents the response from SSI API
type SSIQuoteResponse struct {
	Data []SSIQuoteData `json:"data"`
}

// SSIQuoteData represents price data from SSI API
type SSIQuoteData struct {
	SS   string  `json:"ss"`   // Stock symbol
	ST   string  `json:"st"`   // Exchange (hose, hnx, upcom)
	RP   float64 `json:"rp"`   // Reference price
	OP   float64 `json:"op"`   // Open price
	HP   float64 `json:"hp"`   // Highest price
	LP   float64 `json:"lp"`   // Lowest price
	MP   float64 `json:"mp"`   // Match price (current price)
	CG   float64 `json:"cg"`   // Change
	PCT  float64 `json:"pct"`  // Percent change
	TVOL float64 `json:"tvol"` // Total volume
	MC   float64 `json:"mc"`   // Market cap
}

// SSIProvider fetches batched quotes from the SSI iBoard API. It is
// the primary provider: one HTTP call serves a whole batch of codes.
type SSIProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewSSIProvider creates an SSI quote provider.
func NewSSIProvider() *SSIProvider {
	transport := &http.Transport{
		DisableCompression: true,
	}
	return &SSIProvider{
		baseURL: SSIQuoteAPIURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Name returns the provider identifier stored in data_source.
func (p *SSIProvider) Name() string {
	return "ssi"
}

// FetchBatch fetches quotes for a batch of codes in one call. Codes
// SSI does not recognize are simply absent from the response.
func (p *SSIProvider) FetchBatch(ctx context.Context, codes []string) (map[string]models.Quote, error) {
	if len(codes) == 0 {
		return map[string]models.Quote{}, nil
	}

	url := p.baseURL + strings.Join(codes, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from SSI: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SSI API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response SSIQuoteResponse
	if err := json.Unmarshal(body, &response); err != nil {
		// Some deployments return the array directly
		var dataArray []SSIQuoteData
		if err2 := json.Unmarshal(body, &dataArray); err2 != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		response.Data = dataArray
	}

	quotes := make(map[string]models.Quote, len(response.Data))
	now := time.Now()
	for _, data := range response.Data {
		code := strings.ToUpper(data.SS)
		quotes[code] = models.Quote{
			Code:          code,
			Price:         data.MP,
			Change:        data.CG,
			ChangePercent: data.PCT,
			PreviousClose: data.RP,
			Open:          data.OP,
			High:          data.HP,
			Low:           data.LP,
			Volume:        data.TVOL,
			MarketCap:     data.MC,
			Source:        p.Name(),
			Timestamp:     now,
		}
	}

	log.Printf("SSI API fetched %d/%d quotes", len(quotes), len(codes))
	return quotes, nil
}
