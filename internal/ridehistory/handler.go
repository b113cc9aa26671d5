package ridehistory

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/petit-taxi/pkg/common"
	"github.com/richxcame/petit-taxi/pkg/middleware"
	"github.com/richxcame/petit-taxi/pkg/pagination"
)

// Handler handles HTTP requests for ride history
type Handler struct {
	service *Service
}

// NewHandler creates a new ride history handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// StatsQuery selects the stats period
type StatsQuery struct {
	Period string `form:"period" binding:"omitempty,oneof=all_time today this_week this_month this_year"`
}

// GetHistory returns completed rides, newest first
// GET /api/v1/history?limit=20&offset=0&from=2025-01-01&to=2025-12-31&min_fare=10
func (h *Handler) GetHistory(c *gin.Context) {
	params := pagination.ParseParams(c)

	filters := &HistoryFilters{}
	if fromStr := c.Query("from"); fromStr != "" {
		if t, err := time.Parse("2006-01-02", fromStr); err == nil {
			filters.FromDate = &t
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if t, err := time.Parse("2006-01-02", toStr); err == nil {
			next := t.AddDate(0, 0, 1)
			filters.ToDate = &next
		}
	}
	if v, err := strconv.ParseFloat(c.Query("min_fare"), 64); err == nil {
		filters.MinFare = &v
	}
	if v, err := strconv.ParseFloat(c.Query("max_fare"), 64); err == nil {
		filters.MaxFare = &v
	}

	rides := h.service.List(filters)
	start, end := params.Bounds(len(rides))

	meta := pagination.BuildMeta(params.Limit, params.Offset, int64(len(rides)))
	common.SuccessResponseWithMeta(c, gin.H{"rides": rides[start:end]}, meta)
}

// GetRide returns one ride from history
// GET /api/v1/history/:id
func (h *Handler) GetRide(c *gin.Context) {
	id, ok := parseRideID(c)
	if !ok {
		return
	}

	ride, err := h.service.Get(id)
	if err != nil {
		if errors.Is(err, ErrRideNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "ride not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get ride")
		return
	}

	common.SuccessResponse(c, ride)
}

// GetReceipt returns a receipt for a ride in history
// GET /api/v1/history/:id/receipt?lang=fr
func (h *Handler) GetReceipt(c *gin.Context) {
	id, ok := parseRideID(c)
	if !ok {
		return
	}

	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}
	receipt, err := h.service.GetReceipt(id, lang)
	if err != nil {
		if errors.Is(err, ErrRideNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "ride not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to generate receipt")
		return
	}

	common.SuccessResponse(c, receipt)
}

// GetStats returns aggregated history stats
// GET /api/v1/history/stats?period=this_month
func (h *Handler) GetStats(c *gin.Context) {
	var query StatsQuery
	if err := middleware.ValidateQuery(c, &query); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	common.SuccessResponse(c, h.service.Stats(query.Period))
}

// GetFrequentRoutes returns the most taken routes
// GET /api/v1/history/routes?limit=5
func (h *Handler) GetFrequentRoutes(c *gin.Context) {
	limit := 10
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	common.SuccessResponse(c, gin.H{"routes": h.service.FrequentRoutes(limit)})
}

// DeleteRide removes one ride from history. Removing an unknown id is a no-op.
// DELETE /api/v1/history/:id
func (h *Handler) DeleteRide(c *gin.Context) {
	id, ok := parseRideID(c)
	if !ok {
		return
	}

	removed := h.service.Remove(c.Request.Context(), id)
	common.SuccessResponse(c, gin.H{"id": id, "removed": removed})
}

// ClearHistory deletes every ride from history
// DELETE /api/v1/history
func (h *Handler) ClearHistory(c *gin.Context) {
	h.service.Clear(c.Request.Context())
	common.SuccessResponse(c, gin.H{"message": "history cleared"})
}

// RegisterRoutes registers ride history routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	history := r.Group("/history")
	{
		history.GET("", h.GetHistory)
		history.DELETE("", h.ClearHistory)
		history.GET("/stats", h.GetStats)
		history.GET("/routes", h.GetFrequentRoutes)
		history.GET("/:id", h.GetRide)
		history.GET("/:id/receipt", h.GetReceipt)
		history.DELETE("/:id", h.DeleteRide)
	}
}

func parseRideID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid ride id")
		return 0, false
	}
	return id, true
}
