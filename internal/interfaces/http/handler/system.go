package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saas/controlplane/internal/infrastructure/cache"
	"github.com/saas/controlplane/internal/infrastructure/persistence"
	"github.com/saas/controlplane/internal/infrastructure/pool"
)

// SystemHandler handles system and operational endpoints
type SystemHandler struct {
	BaseHandler
	db        *persistence.Database
	tenants   *cache.TieredTenantCache
	pools     *pool.Manager
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db *persistence.Database, tenants *cache.TieredTenantCache, pools *pool.Manager) *SystemHandler {
	return &SystemHandler{
		db:        db,
		tenants:   tenants,
		pools:     pools,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// SystemStatsResponse reports operational counters for the control plane
type SystemStatsResponse struct {
	MetadataDB  map[string]any        `json:"metadata_db"`
	TenantCache cache.TenantCacheStats `json:"tenant_cache"`
	TenantPools int                   `json:"tenant_pools"`
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	{
		system.GET("/info", h.Info)
		system.GET("/stats", h.Stats)
	}
}

// Info returns basic process information
func (h *SystemHandler) Info(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "Tenant Control Plane",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Stats reports metadata store, cache, and pool counters
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.db.Stats()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, SystemStatsResponse{
		MetadataDB: map[string]any{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
		TenantCache: h.tenants.Stats(),
		TenantPools: h.pools.Size(),
	})
}
