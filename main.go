package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stock_refresher/config"
	"stock_refresher/models"
	"stock_refresher/routes"
	"stock_refresher/scheduler"
	"stock_refresher/services"
)

// dbInitialized tracks whether database has been successfully
// initialized, so /ready can report readiness while the background
// init goroutine is still working.
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Stock Refresher - Starting...")
	log.Println("==============================================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Health endpoints first so the platform can detect the service is
	// up while the database initializes in the background.
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	var embeddedTrigger *scheduler.EmbeddedTrigger
	var jobLog *services.MongoJobLog
	var hub *services.QuoteHub

	go func() {
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		log.Println("Running database migrations...")
		if err := models.MigrateStockModels(db); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		jobLog, err = services.NewMongoJobLog()
		if err != nil {
			log.Printf("Job audit log unavailable: %v", err)
		}

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

		hub = services.NewQuoteHub()
		rotating.SetBroadcaster(hub)
		rotating.SetMarketCapSink(directory)

		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		routes.SetupRoutes(router, routes.Deps{
			DB:        db,
			Scheduler: rotating,
			Store:     store,
			JobLog:    jobLog,
			Directory: directory,
			Hub:       hub,
		})

		if cfg.EmbeddedScheduler {
			embeddedTrigger = scheduler.NewEmbeddedTrigger(rotating)
			embeddedTrigger.Start()
		}

		log.Println("Application fully initialized with database")
	}()

	gracefulShutdown(server, func() {
		if embeddedTrigger != nil {
			embeddedTrigger.Stop()
		}
		if hub != nil {
			hub.Shutdown()
		}
		if jobLog != nil {
			jobLog.Close()
		}
	})
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Stock Refresher API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Trigger-Token")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, stopBackground func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
