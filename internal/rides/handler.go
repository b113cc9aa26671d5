package rides

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/petit-taxi/pkg/common"
	"github.com/richxcame/petit-taxi/pkg/middleware"
	"github.com/richxcame/petit-taxi/pkg/models"
)

const maxNearbyTaxis = 20

// Handler handles HTTP requests for rides
type Handler struct {
	service *Service
}

// NewHandler creates a new rides handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// QuoteQuery is the query of GET /quote
type QuoteQuery struct {
	PickupLocationID      int    `form:"pickupLocationId" binding:"required,gt=0"`
	DestinationLocationID int    `form:"destinationLocationId" binding:"required,gt=0"`
	Mode                  string `form:"mode" binding:"omitempty,rate_mode"`
}

// ModeRequest switches the global rate regime
type ModeRequest struct {
	Mode string `json:"mode" binding:"required,rate_mode"`
}

// GetLocations lists the bookable locations
func (h *Handler) GetLocations(c *gin.Context) {
	common.SuccessResponse(c, gin.H{"locations": h.service.Locations()})
}

// GetNearbyTaxis returns idle taxis around the rider
// GET /api/v1/taxis/nearby?count=5
func (h *Handler) GetNearbyTaxis(c *gin.Context) {
	count := 5
	if v, err := strconv.Atoi(c.Query("count")); err == nil && v >= 0 {
		count = v
	}
	if count > maxNearbyTaxis {
		count = maxNearbyTaxis
	}
	common.SuccessResponse(c, gin.H{"taxis": h.service.NearbyTaxis(count)})
}

// GetQuote estimates a trip
// GET /api/v1/quote?pickupLocationId=1&destinationLocationId=3&mode=night
func (h *Handler) GetQuote(c *gin.Context) {
	var query QuoteQuery
	if err := middleware.ValidateQuery(c, &query); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := h.service.Quote(query.PickupLocationID, query.DestinationLocationID, modeToDay(query.Mode))
	if err != nil {
		h.fail(c, err, "failed to quote ride")
		return
	}

	common.SuccessResponse(c, quote)
}

// BookRide books a ride and starts its simulation
// POST /api/v1/rides
func (h *Handler) BookRide(c *gin.Context) {
	var req models.BookingRequest
	if err := middleware.ValidateJSON(c, &req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.Book(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err, "failed to book ride")
		return
	}

	common.CreatedResponse(c, ride)
}

// GetActiveRide returns the ride in progress
// GET /api/v1/rides/active
func (h *Handler) GetActiveRide(c *gin.Context) {
	snap, ok := h.service.Active()
	if !ok {
		common.SuccessResponse(c, gin.H{"active": false})
		return
	}
	common.SuccessResponse(c, gin.H{"active": true, "snapshot": snap})
}

// CompleteRide completes the ride in progress
// POST /api/v1/rides/active/complete
func (h *Handler) CompleteRide(c *gin.Context) {
	ride, err := h.service.Complete(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to complete ride")
		return
	}
	common.SuccessResponse(c, ride)
}

// CancelRide cancels the ride in progress
// POST /api/v1/rides/active/cancel
func (h *Handler) CancelRide(c *gin.Context) {
	ride, err := h.service.Cancel(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to cancel ride")
		return
	}
	common.SuccessResponse(c, ride)
}

// GetMode returns the global rate regime
func (h *Handler) GetMode(c *gin.Context) {
	common.SuccessResponse(c, modeResponse(h.service.DayMode()))
}

// SetMode switches the global rate regime
// PUT /api/v1/mode {"mode": "night"}
func (h *Handler) SetMode(c *gin.Context) {
	var req ModeRequest
	if err := middleware.ValidateJSON(c, &req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	h.service.SetDayMode(req.Mode == "day")
	common.SuccessResponse(c, modeResponse(h.service.DayMode()))
}

// RegisterRoutes registers ride routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/locations", h.GetLocations)
	r.GET("/taxis/nearby", h.GetNearbyTaxis)
	r.GET("/quote", h.GetQuote)
	r.GET("/mode", h.GetMode)
	r.PUT("/mode", h.SetMode)

	rides := r.Group("/rides")
	{
		rides.POST("", h.BookRide)
		rides.GET("/active", h.GetActiveRide)
		rides.POST("/active/complete", h.CompleteRide)
		rides.POST("/active/cancel", h.CancelRide)
	}
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	if appErr, ok := common.AsAppError(err); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}

func modeToDay(mode string) *bool {
	if mode == "" {
		return nil
	}
	day := mode == "day"
	return &day
}

func modeResponse(day bool) gin.H {
	mode := "night"
	if day {
		mode = "day"
	}
	return gin.H{"mode": mode, "isDayMode": day}
}
