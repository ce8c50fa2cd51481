package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stock_refresher/config"
	"stock_refresher/controllers"
	"stock_refresher/middleware"
	"stock_refresher/scheduler"
	"stock_refresher/services"
)

// Deps holds the shared service instances wired at startup.
type Deps struct {
	DB        *gorm.DB
	Scheduler *scheduler.RotatingScheduler
	Store     *services.GormPriceStore
	JobLog    *services.MongoJobLog
	Directory *services.InstrumentDirectory
	Hub       *services.QuoteHub
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	refreshController := controllers.NewRefreshController(deps.Scheduler)
	priceController := controllers.NewPriceController(deps.Store, deps.JobLog, deps.Directory)

	// Refresh trigger: one call per slice, invoked by an external
	// periodic trigger (or the embedded one).
	router.GET("/refresh",
		middleware.TriggerAuthMiddleware(config.AppConfig.RefreshSecret),
		refreshController.Refresh,
	)

	// Read API
	api := router.Group("/api/v1")
	{
		prices := api.Group("/prices")
		{
			prices.GET("", priceController.ListPrices)
			prices.GET("/top-gainers", priceController.GetTopGainers)
			prices.GET("/top-losers", priceController.GetTopLosers)
			prices.GET("/:code", priceController.GetPrice)
		}

		api.GET("/jobs", priceController.ListJobs)

		universe := api.Group("/universe")
		{
			universe.GET("/slices", refreshController.Slices)
			universe.POST("/sync",
				middleware.TriggerAuthMiddleware(config.AppConfig.RefreshSecret),
				priceController.SyncUniverse,
			)
		}
	}

	// Live quote stream
	if deps.Hub != nil {
		router.GET("/ws/prices", func(c *gin.Context) {
			deps.Hub.HandleWebSocket(c.Writer, c.Request)
		})
	}
}
