package handler

import (
	"github.com/gin-gonic/gin"
	usageapp "github.com/saas/controlplane/internal/application/usage"
)

// UsageHandler handles usage metering API endpoints
type UsageHandler struct {
	BaseHandler
	metering *usageapp.MeteringService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(metering *usageapp.MeteringService) *UsageHandler {
	return &UsageHandler{metering: metering}
}

// RecordUsageRequest represents a usage measurement to record
type RecordUsageRequest struct {
	Metric   string `json:"metric" binding:"required,min=1,max=100"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
	Unit     string `json:"unit" binding:"omitempty,max=20"`
}

// CheckLimitRequest represents an admit/deny question
type CheckLimitRequest struct {
	Metric   string `form:"metric" binding:"required,min=1,max=100"`
	Quantity int64  `form:"quantity" binding:"omitempty,gt=0"`
}

// ListUsageRequest bounds the raw record listing
type ListUsageRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// RegisterRoutes registers usage metering routes
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	usage := rg.Group("/tenants/:id/usage")
	{
		usage.POST("", h.Record)
		usage.GET("", h.List)
		usage.GET("/check", h.Check)
		usage.GET("/summary", h.Summary)
		usage.GET("/:metric", h.Current)
	}
}

// Record appends a usage measurement for the tenant
func (h *UsageHandler) Record(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.metering.RecordUsage(c.Request.Context(), id, usageapp.RecordUsageInput{
		Metric:   req.Metric,
		Quantity: req.Quantity,
		Unit:     req.Unit,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Check answers whether requested units fit under the effective limit.
// A deny is a 200 with allowed=false; 429 is reserved for enforcement.
func (h *UsageHandler) Check(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	req := CheckLimitRequest{Quantity: 1}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	check, err := h.metering.CheckLimit(c.Request.Context(), id, req.Metric, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// Summary reports usage against limits for all recorded metrics
func (h *UsageHandler) Summary(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	summary, err := h.metering.Summary(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Current returns the running total for one metric in the current window
func (h *UsageHandler) Current(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	metric := c.Param("metric")

	total, err := h.metering.CurrentUsage(c.Request.Context(), id, metric)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"metric": metric, "total": total})
}

// List returns the tenant's raw usage records for the current window
func (h *UsageHandler) List(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	req := ListUsageRequest{Limit: 100}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	records, err := h.metering.ListRecords(c.Request.Context(), id, req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, records, req.Limit, 0, len(records))
}
