package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_refresher/models"
	"stock_refresher/scheduler"
)

// VNDirectListAPIURL is the endpoint for the full listed-stock universe
const VNDirectListAPIURL = "https://api-finfo.vndirect.com.vn/v4/stocks?q=type:stock~status:listed~floor:HOSE,HNX,UPCOM&size=9999"

// VN30Codes is the core membership list: index constituents are tier 1
// regardless of market cap.
var VN30Codes = []string{
	"ACB", "BCM", "BID", "BVH", "CTG", "FPT", "GAS", "GVR", "HDB", "HPG",
	"MBB", "MSN", "MWG", "PLX", "POW", "SAB", "SHB", "SSB", "SSI", "STB",
	"TCB", "TPB", "VCB", "VHM", "VIB", "VIC", "VJC", "VNM", "VPB", "VRE",
}

// VNDirectListResponse represents the stock list response from VNDirect
type VNDirectListResponse struct {
	Data []VNDirectStock `json:"data"`
}

// VNDirectStock represents a stock from the VNDirect listing API
type VNDirectStock struct {
	Code        string `json:"code"`
	Type        string `json:"type"`
	Floor       string `json:"floor"`
	Status      string `json:"status"`
	CompanyName string `json:"companyName"`
}

// StockSyncResult contains the result of a universe sync
type StockSyncResult struct {
	TotalFetched int    `json:"total_fetched"`
	Upserted     int    `json:"upserted"`
	SyncedAt     string `json:"synced_at"`
}

// InstrumentDirectory derives the tiered instrument universe from the
// stocks table. Tiers are recomputed on demand from the core list and
// the stored market-cap snapshot; the directory never mutates them.
type InstrumentDirectory struct {
	db         *gorm.DB
	core       []string
	thresholds scheduler.TierThresholds
	httpClient *http.Client
}

// NewInstrumentDirectory creates a directory over the stocks table.
func NewInstrumentDirectory(db *gorm.DB, thresholds scheduler.TierThresholds) *InstrumentDirectory {
	return &InstrumentDirectory{
		db:         db,
		core:       VN30Codes,
		thresholds: thresholds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// All returns every active instrument with its tier assigned.
func (d *InstrumentDirectory) All() ([]scheduler.Instrument, error) {
	var stocks []models.Stock
	if err := d.db.Where("is_active = ?", true).Order("code asc").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("failed to load stock universe: %w", err)
	}

	marketCaps := make(map[string]float64, len(stocks))
	for _, stock := range stocks {
		cap, _ := stock.MarketCap.Float64()
		if cap > 0 {
			marketCaps[stock.Code] = cap
		}
	}

	classifier := scheduler.NewTierClassifier(d.core, marketCaps, d.thresholds)

	instruments := make([]scheduler.Instrument, 0, len(stocks))
	for _, stock := range stocks {
		instruments = append(instruments, scheduler.Instrument{
			Code: stock.Code,
			Tier: classifier.Classify(stock.Code),
		})
	}
	return instruments, nil
}

// SyncStockList refreshes the stocks table from the VNDirect listing
// API. Run manually or on a slow schedule; the refresh loop itself
// never calls it.
func (d *InstrumentDirectory) SyncStockList() (*StockSyncResult, error) {
	listed, err := d.fetchStockList()
	if err != nil {
		return nil, err
	}

	result := &StockSyncResult{
		TotalFetched: len(listed),
		SyncedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	now := time.Now()
	for _, vs := range listed {
		code := strings.ToUpper(vs.Code)
		if code == "" {
			continue
		}
		stock := models.Stock{
			Code:        code,
			Floor:       vs.Floor,
			CompanyName: vs.CompanyName,
			Type:        vs.Type,
			Status:      vs.Status,
			IsActive:    vs.Status == "listed",
			LastSyncAt:  &now,
		}

		err := d.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"floor", "company_name", "type", "status", "is_active", "last_sync_at", "updated_at",
			}),
		}).Create(&stock).Error
		if err != nil {
			log.Printf("Failed to upsert stock %s: %v", code, err)
			continue
		}
		result.Upserted++
	}

	log.Printf("Stock list sync completed: fetched=%d, upserted=%d", result.TotalFetched, result.Upserted)
	return result, nil
}

// UpdateMarketCaps stores a market-cap snapshot for the given codes.
// The SSI batch payload carries market caps, so the refresh loop can
// feed this as a side effect of normal fetching.
func (d *InstrumentDirectory) UpdateMarketCaps(caps map[string]float64) error {
	for code, cap := range caps {
		if cap <= 0 {
			continue
		}
		err := d.db.Model(&models.Stock{}).
			Where("code = ?", code).
			Update("market_cap", cap).Error
		if err != nil {
			return fmt.Errorf("failed to update market cap for %s: %w", code, err)
		}
	}
	return nil
}

// fetchStockList fetches the listed universe from VNDirect
func (d *InstrumentDirectory) fetchStockList() ([]VNDirectStock, error) {
	req, err := http.NewRequest(http.MethodGet, VNDirectListAPIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from VNDirect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("VNDirect API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response VNDirectListResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	log.Printf("VNDirect API fetched %d stocks", len(response.Data))
	return response.Data, nil
}
