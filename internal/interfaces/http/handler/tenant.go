package handler

import (
	"github.com/gin-gonic/gin"
	tenantapp "github.com/saas/controlplane/internal/application/tenant"
	"github.com/saas/controlplane/internal/interfaces/http/dto"
)

// TenantHandler handles tenant lifecycle API endpoints
type TenantHandler struct {
	BaseHandler
	lifecycle *tenantapp.LifecycleService
}

// NewTenantHandler creates a new TenantHandler
func NewTenantHandler(lifecycle *tenantapp.LifecycleService) *TenantHandler {
	return &TenantHandler{lifecycle: lifecycle}
}

// CreateTenantRequest represents a request to create a tenant
type CreateTenantRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=200"`
	Subdomain string `json:"subdomain" binding:"required,subdomain"`
	Plan      string `json:"plan" binding:"required,oneof=free basic pro enterprise"`
	Settings  string `json:"settings" binding:"omitempty,json"`
	TrialDays *int   `json:"trial_days" binding:"omitempty,min=0,max=365"`
}

// UpdateTenantRequest represents a partial tenant update
type UpdateTenantRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=200"`
	CustomDomain *string `json:"custom_domain" binding:"omitempty,max=255"`
	Settings     *string `json:"settings" binding:"omitempty,json"`
	BillingMeta  *string `json:"billing_meta" binding:"omitempty,json"`
}

// ChangePlanRequest represents a plan change
type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required,oneof=free basic pro enterprise"`
}

// SetLimitOverrideRequest represents a tenant-specific limit override
type SetLimitOverrideRequest struct {
	Metric string `json:"metric" binding:"required,min=1,max=100"`
	Limit  int64  `json:"limit" binding:"min=-1"`
}

// RegisterRoutes registers tenant lifecycle routes
func (h *TenantHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tenants := rg.Group("/tenants")
	{
		tenants.POST("", h.Create)
		tenants.GET("", h.List)
		tenants.GET("/:id", h.Get)
		tenants.PATCH("/:id", h.Update)
		tenants.DELETE("/:id", h.Delete)
		tenants.POST("/:id/suspend", h.Suspend)
		tenants.POST("/:id/activate", h.Activate)
		tenants.PUT("/:id/plan", h.ChangePlan)
		tenants.GET("/:id/limits", h.Limits)
		tenants.PUT("/:id/limits", h.SetLimitOverride)
	}
}

// Create provisions a new tenant with isolated storage
func (h *TenantHandler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.lifecycle.CreateTenant(c.Request.Context(), tenantapp.CreateTenantInput{
		Name:      req.Name,
		Subdomain: req.Subdomain,
		Plan:      req.Plan,
		Settings:  req.Settings,
		TrialDays: req.TrialDays,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Get returns a tenant by ID
func (h *TenantHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.lifecycle.GetTenant(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// List returns tenants with optional state filtering
func (h *TenantHandler) List(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	result, err := h.lifecycle.ListTenants(c.Request.Context(), req.State, req.Limit, req.Offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result, req.Limit, req.Offset, len(result))
}

// Update applies partial changes to a tenant's profile
func (h *TenantHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.lifecycle.UpdateTenant(c.Request.Context(), id, tenantapp.UpdateTenantInput{
		Name:         req.Name,
		CustomDomain: req.CustomDomain,
		Settings:     req.Settings,
		BillingMeta:  req.BillingMeta,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete tears down the tenant's storage and removes it
func (h *TenantHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := h.lifecycle.DeleteTenant(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Suspend blocks a tenant from serving
func (h *TenantHandler) Suspend(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := h.lifecycle.Suspend(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Activate reinstates a suspended tenant
func (h *TenantHandler) Activate(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := h.lifecycle.Activate(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ChangePlan switches the tenant to a different plan
func (h *TenantHandler) ChangePlan(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.lifecycle.ChangePlan(c.Request.Context(), id, req.Plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Limits returns the tenant's effective limits per metric
func (h *TenantHandler) Limits(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	limits, err := h.lifecycle.EffectiveLimits(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, limits)
}

// SetLimitOverride records a tenant-specific ceiling for one metric
func (h *TenantHandler) SetLimitOverride(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req SetLimitOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.lifecycle.SetLimitOverride(c.Request.Context(), id, req.Metric, req.Limit); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
