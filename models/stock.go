package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock represents one listed code in the tracked universe
type Stock struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"uniqueIndex;not null" json:"code"`
	Floor       string          `json:"floor"` // HOSE, HNX, UPCOM
	CompanyName string          `json:"company_name"`
	Type        string          `json:"type"`
	Status      string          `json:"status"` // listed, delisted, suspended
	MarketCap   decimal.Decimal `gorm:"type:decimal(20,2)" json:"market_cap"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`
	LastSyncAt  *time.Time      `json:"last_sync_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Scrape status values for StockPrice rows.
const (
	ScrapeStatusOK     = "ok"
	ScrapeStatusFailed = "failed"
)

// StockPrice is the durable price record, exactly one row per code.
// Successful refreshes overwrite the whole row; failed fetches only
// touch the status columns so historical prices are never clobbered.
type StockPrice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Code          string          `gorm:"uniqueIndex;not null" json:"code"`
	Price         decimal.Decimal `gorm:"type:decimal(15,2)" json:"price"`
	Change        decimal.Decimal `gorm:"type:decimal(15,2)" json:"change"`
	ChangePercent decimal.Decimal `gorm:"type:decimal(10,4)" json:"change_percent"`
	PreviousClose decimal.Decimal `gorm:"type:decimal(15,2)" json:"previous_close"`
	Open          decimal.Decimal `gorm:"type:decimal(15,2)" json:"open"`
	High          decimal.Decimal `gorm:"type:decimal(15,2)" json:"high"`
	Low           decimal.Decimal `gorm:"type:decimal(15,2)" json:"low"`
	Volume        int64           `json:"volume"`
	Tier          int             `json:"tier"`
	DataSource    string          `json:"data_source"`
	NextUpdateAt  *time.Time      `json:"next_update_at"`
	ScrapeStatus  string          `json:"scrape_status"` // ok, failed
	ErrorMessage  string          `json:"error_message"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RefreshJob is the per-invocation audit record. Append-only: written
// once at the end of an invocation and never updated afterwards.
type RefreshJob struct {
	JobID            string    `bson:"job_id" json:"job_id"`
	Slice            int       `bson:"slice" json:"slice"`
	StartedAt        time.Time `bson:"started_at" json:"started_at"`
	CompletedAt      time.Time `bson:"completed_at" json:"completed_at"`
	TotalInstruments int       `bson:"total_instruments" json:"total_instruments"`
	SuccessCount     int       `bson:"success_count" json:"success_count"`
	FailedCount      int       `bson:"failed_count" json:"failed_count"`
	FailedCodes      []string  `bson:"failed_codes" json:"failed_codes"`
	Status           string    `bson:"status" json:"status"` // completed, failed
}

// MigrateStockModels runs database migrations for stock-related models
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Stock{},
		&StockPrice{},
	)
}
