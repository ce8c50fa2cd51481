package services

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_refresher/models"
)

// priceUpdateColumns are the columns a successful refresh overwrites.
var priceUpdateColumns = []string{
	"price", "change", "change_percent", "previous_close",
	"open", "high", "low", "volume",
	"tier", "data_source", "next_update_at",
	"scrape_status", "error_message", "updated_at",
}

// failureUpdateColumns are the only columns a failed fetch may touch.
// Price fields stay untouched so the last good data survives.
var failureUpdateColumns = []string{
	"scrape_status", "error_message", "updated_at",
}

// GormPriceStore persists quotes with one row per code, upserted on
// the unique code column. Safe under concurrent writers because
// slices never overlap, and idempotent under same-bucket retries.
type GormPriceStore struct {
	db *gorm.DB
}

// NewGormPriceStore creates a price store over the given database.
func NewGormPriceStore(db *gorm.DB) *GormPriceStore {
	return &GormPriceStore{db: db}
}

// UpsertQuotes writes one row per quote. A failing record is logged
// and reported but never aborts the rest of the window.
func (s *GormPriceStore) UpsertQuotes(updates []models.PriceUpdate) (int, []string) {
	updated := 0
	failedCodes := []string{}

	for _, u := range updates {
		nextUpdate := u.NextUpdateAt
		record := models.StockPrice{
			Code:          u.Quote.Code,
			Price:         decimal.NewFromFloat(u.Quote.Price),
			Change:        decimal.NewFromFloat(u.Quote.Change),
			ChangePercent: decimal.NewFromFloat(u.Quote.ChangePercent),
			PreviousClose: decimal.NewFromFloat(u.Quote.PreviousClose),
			Open:          decimal.NewFromFloat(u.Quote.Open),
			High:          decimal.NewFromFloat(u.Quote.High),
			Low:           decimal.NewFromFloat(u.Quote.Low),
			Volume:        int64(u.Quote.Volume),
			Tier:          u.Tier,
			DataSource:    u.Quote.Source,
			NextUpdateAt:  &nextUpdate,
			ScrapeStatus:  models.ScrapeStatusOK,
			ErrorMessage:  "",
		}

		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns(priceUpdateColumns),
		}).Create(&record).Error

		if err != nil {
			log.Printf("Failed to upsert price for %s: %v", u.Quote.Code, err)
			failedCodes = append(failedCodes, u.Quote.Code)
			continue
		}
		updated++
	}

	return updated, failedCodes
}

// MarkFailed writes status-only updates for codes both providers
// missed. Rows that do not exist yet get a stub with no price data.
func (s *GormPriceStore) MarkFailed(failures []models.FailureUpdate) error {
	var firstErr error

	for _, f := range failures {
		record := models.StockPrice{
			Code:         f.Code,
			Tier:         f.Tier,
			ScrapeStatus: models.ScrapeStatusFailed,
			ErrorMessage: f.Reason,
		}

		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns(failureUpdateColumns),
		}).Create(&record).Error

		if err != nil {
			log.Printf("Failed to mark %s as failed: %v", f.Code, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// PriceListResponse contains paginated price results
type PriceListResponse struct {
	Prices     []models.StockPrice `json:"prices"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// GetPrices returns paginated prices with search and tier filter
func (s *GormPriceStore) GetPrices(page, pageSize int, search string, tier int) (*PriceListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	query := s.db.Model(&models.StockPrice{})
	if search != "" {
		query = query.Where("code LIKE ?", "%"+search+"%")
	}
	if tier > 0 {
		query = query.Where("tier = ?", tier)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count prices: %w", err)
	}

	var prices []models.StockPrice
	if err := query.Order("code asc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &PriceListResponse{
		Prices:     prices,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetByCode returns a price record by code
func (s *GormPriceStore) GetByCode(code string) (*models.StockPrice, error) {
	var price models.StockPrice
	if err := s.db.Where("code = ?", code).First(&price).Error; err != nil {
		return nil, fmt.Errorf("price not found for code %s: %w", code, err)
	}
	return &price, nil
}

// GetTopGainers returns the top N codes by percent change
func (s *GormPriceStore) GetTopGainers(limit int) ([]models.StockPrice, error) {
	var prices []models.StockPrice
	err := s.db.Where("scrape_status = ? AND change_percent > 0", models.ScrapeStatusOK).
		Order("change_percent desc").
		Limit(limit).
		Find(&prices).Error
	return prices, err
}

// GetTopLosers returns the bottom N codes by percent change
func (s *GormPriceStore) GetTopLosers(limit int) ([]models.StockPrice, error) {
	var prices []models.StockPrice
	err := s.db.Where("scrape_status = ? AND change_percent < 0", models.ScrapeStatusOK).
		Order("change_percent asc").
		Limit(limit).
		Find(&prices).Error
	return prices, err
}
