package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/saas/controlplane/internal/application/tenant"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/infrastructure/logger"
	"github.com/saas/controlplane/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Gin context keys for resolved tenant state
const (
	TenantContextKey = "tenant_context"
	TenantIDKey      = "tenant_id"
)

// TenantResolver maps a request host to a serving tenant context.
// Satisfied by the tenant lifecycle service.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, hostKey string) (*tenant.TenantContext, error)
}

// ResolveTenant resolves the request's Host header to a tenant and attaches
// the tenant context for downstream handlers. Unknown hosts get 404,
// tenants that cannot serve get 503.
func ResolveTenant(resolver TenantResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := resolver.ResolveTenant(c.Request.Context(), c.Request.Host)
		if err != nil {
			abortWithResolutionError(c, err, log)
			return
		}

		c.Set(TenantContextKey, tc)
		c.Set(TenantIDKey, tc.Tenant.ID.String())
		ctx, _ := logger.WithTenantID(c.Request.Context(), logger.FromContext(c.Request.Context()), tc.Tenant.ID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortWithResolutionError(c *gin.Context, err error, log *zap.Logger) {
	requestID := GetRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, domainErr.Message, requestID))
		return
	}

	if log != nil {
		log.Error("Tenant resolution failed",
			zap.String("host", c.Request.Host),
			zap.String("request_id", requestID),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(
		dto.GetHTTPStatus(dto.ErrCodeInternal),
		dto.NewErrorResponse(dto.ErrCodeInternal, "Tenant resolution failed", requestID),
	)
}

// GetTenantContext returns the resolved tenant context, or nil when the
// route did not pass through ResolveTenant
func GetTenantContext(c *gin.Context) *tenant.TenantContext {
	if v, ok := c.Get(TenantContextKey); ok {
		if tc, ok := v.(*tenant.TenantContext); ok {
			return tc
		}
	}
	return nil
}
