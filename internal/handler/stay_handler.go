package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unitstay/service-booking/internal/application"
	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	"github.com/unitstay/service-booking/internal/platform/response"
)

// StayHandler handles HTTP requests for stay operations.
type StayHandler struct {
	service *application.StayService
}

// NewStayHandler creates a new StayHandler.
func NewStayHandler(service *application.StayService) *StayHandler {
	return &StayHandler{service: service}
}

// RegisterRoutes registers the stay routes. Middleware in writeMW wraps only PUT and PATCH.
func (h *StayHandler) RegisterRoutes(r gin.IRouter, writeMW ...gin.HandlerFunc) {
	v1 := r.Group("/api/v1")
	{
		v1.PUT("/booking", withMiddleware(writeMW, h.CreateStay)...)
		v1.PATCH("/booking", withMiddleware(writeMW, h.ExtendStay)...)
		v1.GET("/booking/:id", h.GetStay)
		v1.GET("/bookings", h.ListStays)
	}
}

// CreateStay handles PUT /api/v1/booking.
func (h *StayHandler) CreateStay(c *gin.Context) {
	var req application.StayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Unprocessable(c, "invalid request body: "+err.Error())
		return
	}

	result, rejection, err := h.service.CreateStay(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if rejection != nil {
		response.Rejected(c, rejection.Message)
		return
	}

	response.Success(c, result)
}

// ExtendStay handles PATCH /api/v1/booking.
func (h *StayHandler) ExtendStay(c *gin.Context) {
	var req application.StayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Unprocessable(c, "invalid request body: "+err.Error())
		return
	}

	result, rejection, err := h.service.ExtendStay(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if rejection != nil {
		response.Rejected(c, rejection.Message)
		return
	}

	response.Success(c, result)
}

// GetStay handles GET /api/v1/booking/:id.
func (h *StayHandler) GetStay(c *gin.Context) {
	stayID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Unprocessable(c, "invalid stay ID")
		return
	}

	result, err := h.service.GetStay(c.Request.Context(), stayID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListStays handles GET /api/v1/bookings.
func (h *StayHandler) ListStays(c *gin.Context) {
	page, limit := parsePagination(c)
	filter := stayDomain.ListFilter{
		GuestName: c.Query("guestName"),
		UnitID:    c.Query("unitID"),
	}

	items, total, err := h.service.ListStays(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

func withMiddleware(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(mw)+1)
	chain = append(chain, mw...)
	return append(chain, h)
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
