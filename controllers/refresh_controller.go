package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stock_refresher/scheduler"
)

// RefreshController handles the stateless refresh trigger endpoint.
type RefreshController struct {
	scheduler *scheduler.RotatingScheduler
}

// NewRefreshController creates a refresh controller.
func NewRefreshController(s *scheduler.RotatingScheduler) *RefreshController {
	return &RefreshController{scheduler: s}
}

// Refresh handles GET /refresh?slice=<int>&secret=<string>&force=<bool>.
// Each call is one independent invocation: the slice index selects the
// partition, the current time selects the rotation window.
func (ctrl *RefreshController) Refresh(c *gin.Context) {
	start := time.Now()

	sliceParam := c.Query("slice")
	if sliceParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "slice query parameter is required",
		})
		return
	}
	sliceIndex, err := strconv.Atoi(sliceParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "slice must be an integer",
		})
		return
	}

	force := c.DefaultQuery("force", "false") == "true"

	result, err := ctrl.scheduler.RunSlice(c.Request.Context(), sliceIndex, force)
	if err != nil {
		if errors.Is(err, scheduler.ErrSliceOutOfRange) || errors.Is(err, scheduler.ErrEmptyUniverse) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "bad_request",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "refresh_failed",
			"message":           err.Error(),
			"job_id":            result.JobID,
			"execution_time_ms": time.Since(start).Milliseconds(),
		})
		return
	}

	if result.Skipped {
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"skipped":           true,
			"message":           "Market closed, refresh skipped",
			"slice":             result.Slice,
			"execution_time_ms": time.Since(start).Milliseconds(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"slice":   result.Slice,
		"rotation": gin.H{
			"offset":          result.Rotation.Offset,
			"stocks_in_slice": result.Rotation.StocksInSlice,
			"cycle_info": gin.H{
				"cycle_index":   result.Rotation.CycleIndex,
				"cycles_needed": result.Rotation.CyclesNeeded,
			},
		},
		"result": gin.H{
			"updated":      result.Updated,
			"failed":       result.Failed,
			"failed_codes": result.FailedCodes,
		},
		"job_id":            result.JobID,
		"execution_time_ms": time.Since(start).Milliseconds(),
	})
}

// Slices handles GET /api/v1/universe/slices - partition preview for
// diagnostics.
func (ctrl *RefreshController) Slices(c *gin.Context) {
	slices, err := ctrl.scheduler.Slices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summaries := make([]gin.H, 0, len(slices))
	for _, sl := range slices {
		tierCounts := map[int]int{}
		for _, inst := range sl.Members {
			tierCounts[inst.Tier]++
		}
		summaries = append(summaries, gin.H{
			"index":      sl.Index,
			"size":       len(sl.Members),
			"tier_count": tierCounts,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_slices": ctrl.scheduler.Config().TotalSlices,
		"slices":       summaries,
	})
}
