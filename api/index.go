package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stock_refresher/config"
	"stock_refresher/models"
	"stock_refresher/routes"
	"stock_refresher/scheduler"
	"stock_refresher/services"
)

var router *gin.Engine

// init wires the whole refresh pipeline once per cold start. Each
// invocation after that is a plain stateless request: the rotation
// window is derived from the clock, never from instance state, so
// scale-out and cold starts are safe.
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load configuration")
	}

	db, err := config.InitDB()
	if err != nil {
		panic("Failed to connect to database")
	}

	if err := models.MigrateStockModels(db); err != nil {
		panic("Failed to run migrations: " + err.Error())
	}

	// On connection failure the log comes back disabled and every
	// write degrades to a no-op.
	jobLog, _ := services.NewMongoJobLog()

	directory := services.NewInstrumentDirectory(db, scheduler.TierThresholds{
		Tier1MarketCap: cfg.Tier1MarketCap,
		Tier2MarketCap: cfg.Tier2MarketCap,
	})

	fetcher := services.NewMultiSourceQuoteFetcher(
		services.NewSSIProvider(),
		services.NewTCBSProvider(),
		cfg.ProviderBatchSize,
		time.Duration(cfg.ProviderBatchDelayMs)*time.Millisecond,
	)

	store := services.NewGormPriceStore(db)

	rotating := scheduler.NewRotatingScheduler(scheduler.Config{
		TotalSlices:        cfg.TotalSlices,
		WindowSize:         cfg.WindowSize,
		CadenceMinutesTier: cfg.CadenceMinutesTier,
	}, directory, fetcher, store, jobLog)
	rotating.SetMarketCapSink(directory)

	gin.SetMode(gin.ReleaseMode)

	router = gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// No websocket hub or embedded trigger here: serverless instances
	// are short-lived, the platform cron calls /refresh directly.
	routes.SetupRoutes(router, routes.Deps{
		DB:        db,
		Scheduler: rotating,
		Store:     store,
		JobLog:    jobLog,
		Directory: directory,
	})
}

// Handler is the serverless function entry point
func Handler(w http.ResponseWriter, r *http.Request) {
	router.ServeHTTP(w, r)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Trigger-Token, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
