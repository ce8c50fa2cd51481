package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	Environment string

	DBDriver   string // postgres or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	MongoURI string

	// Trigger authorization. RefreshSecret may be a plain value or a
	// bcrypt hash (recognized by the $2 prefix).
	RefreshSecret string

	// Rotation parameters. Cadence is minutes between invocations for
	// slices dominated by each tier.
	TotalSlices        int
	WindowSize         int
	CadenceMinutesTier [4]int // indexed by tier, [0] unused

	// Tier thresholds (market cap, VND).
	Tier1MarketCap float64
	Tier2MarketCap float64

	// Provider limits.
	ProviderBatchSize    int
	ProviderBatchDelayMs int

	// When true, an in-process gocron trigger fires the refresh loop
	// instead of relying on an external periodic caller.
	EmbeddedScheduler bool
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "stock_refresher"),
		SQLitePath: getEnv("SQLITE_PATH", "data/stock_refresher.db"),

		MongoURI: getEnv("MONGODB_URI", ""),

		RefreshSecret: getEnv("REFRESH_SECRET", ""),

		TotalSlices: getEnvInt("TOTAL_SLICES", 4),
		WindowSize:  getEnvInt("WINDOW_SIZE", 40),

		Tier1MarketCap: getEnvFloat("TIER1_MARKET_CAP", 50_000_000_000_000), // 50T VND
		Tier2MarketCap: getEnvFloat("TIER2_MARKET_CAP", 5_000_000_000_000),  // 5T VND

		ProviderBatchSize:    getEnvInt("PROVIDER_BATCH_SIZE", 20),
		ProviderBatchDelayMs: getEnvInt("PROVIDER_BATCH_DELAY_MS", 500),

		EmbeddedScheduler: getEnv("EMBEDDED_SCHEDULER", "false") == "true",
	}

	config.CadenceMinutesTier[1] = getEnvInt("CADENCE_MINUTES_TIER1", 5)
	config.CadenceMinutesTier[2] = getEnvInt("CADENCE_MINUTES_TIER2", 15)
	config.CadenceMinutesTier[3] = getEnvInt("CADENCE_MINUTES_TIER3", 60)

	if config.TotalSlices < 1 {
		return nil, fmt.Errorf("TOTAL_SLICES must be at least 1, got %d", config.TotalSlices)
	}
	if config.WindowSize < 1 {
		return nil, fmt.Errorf("WINDOW_SIZE must be at least 1, got %d", config.WindowSize)
	}

	AppConfig = config
	return config, nil
}

// InitDB initializes database connection
func InitDB() (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var db *gorm.DB
	var err error

	switch AppConfig.DBDriver {
	case "sqlite":
		log.Printf("Opening sqlite database at %s", AppConfig.SQLitePath)
		db, err = gorm.Open(sqlite.Open(AppConfig.SQLitePath), gormConfig)
	default:
		log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
			maskHost(AppConfig.DBHost),
			AppConfig.DBPort,
			AppConfig.DBUser,
			AppConfig.DBName,
		)

		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=require TimeZone=Asia/Ho_Chi_Minh",
			AppConfig.DBHost,
			AppConfig.DBUser,
			AppConfig.DBPassword,
			AppConfig.DBName,
			AppConfig.DBPort,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	}

	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Failed to get underlying database: %v", err)
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database ping failed: %v", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified successfully")
	DB = db
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %g", key, value, defaultValue)
		return defaultValue
	}
	return f
}
