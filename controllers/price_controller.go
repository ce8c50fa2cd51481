package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stock_refresher/services"
)

// PriceController serves the read API over persisted price records.
type PriceController struct {
	store     *services.GormPriceStore
	jobLog    *services.MongoJobLog
	directory *services.InstrumentDirectory
}

// NewPriceController creates a price controller.
func NewPriceController(store *services.GormPriceStore, jobLog *services.MongoJobLog, directory *services.InstrumentDirectory) *PriceController {
	return &PriceController{
		store:     store,
		jobLog:    jobLog,
		directory: directory,
	}
}

// ListPrices handles GET /api/v1/prices
func (ctrl *PriceController) ListPrices(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	search := c.Query("search")
	tier, _ := strconv.Atoi(c.DefaultQuery("tier", "0"))

	result, err := ctrl.store.GetPrices(page, pageSize, search, tier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPrice handles GET /api/v1/prices/:code
func (ctrl *PriceController) GetPrice(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))

	price, err := ctrl.store.GetByCode(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, price)
}

// GetTopGainers handles GET /api/v1/prices/top-gainers
func (ctrl *PriceController) GetTopGainers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit > 50 {
		limit = 50
	}

	gainers, err := ctrl.store.GetTopGainers(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gainers)
}

// GetTopLosers handles GET /api/v1/prices/top-losers
func (ctrl *PriceController) GetTopLosers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit > 50 {
		limit = 50
	}

	losers, err := ctrl.store.GetTopLosers(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, losers)
}

// ListJobs handles GET /api/v1/jobs - recent refresh job audit records
func (ctrl *PriceController) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	jobs, err := ctrl.jobLog.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":        jobs,
		"audit_store": ctrl.jobLog.IsConnected(),
	})
}

// SyncUniverse handles POST /api/v1/universe/sync - refreshes the
// stock list from the listing API
func (ctrl *PriceController) SyncUniverse(c *gin.Context) {
	result, err := ctrl.directory.SyncStockList()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock list sync completed",
		"result":  result,
	})
}
