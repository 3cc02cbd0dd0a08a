package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/saas/controlplane/internal/application/usage"
	"github.com/saas/controlplane/internal/domain/shared"
	"github.com/saas/controlplane/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// QuotaEnforcer answers admit/deny for a metered request and records the
// resulting usage. Satisfied by the metering service.
type QuotaEnforcer interface {
	EnforceLimit(ctx context.Context, tenantID uuid.UUID, metric string, requested int64) error
	RecordUsage(ctx context.Context, tenantID uuid.UUID, in usage.RecordUsageInput) (*usage.RecordDTO, error)
}

// MeterRequests enforces the metric's quota before serving and records one
// unit after a successful response. Check and record are two steps, not a
// transaction, so bursts near the ceiling can land slightly over it.
// Must run after ResolveTenant.
func MeterRequests(meter QuotaEnforcer, metric string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := GetTenantContext(c)
		if tc == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if err := meter.EnforceLimit(ctx, tc.Tenant.ID, metric, 1); err != nil {
			abortWithQuotaError(c, err)
			return
		}

		c.Next()

		// failed requests do not consume quota
		if c.Writer.Status() >= 400 {
			return
		}
		if _, err := meter.RecordUsage(ctx, tc.Tenant.ID, usage.RecordUsageInput{
			Metric:   metric,
			Quantity: 1,
		}); err != nil && log != nil {
			log.Warn("Failed to record request usage",
				zap.String("tenant_id", tc.Tenant.ID.String()),
				zap.String("metric", metric),
				zap.Error(err))
		}
	}
}

func abortWithQuotaError(c *gin.Context, err error) {
	requestID := GetRequestID(c)

	var quotaErr *shared.QuotaExceededError
	if errors.As(err, &quotaErr) {
		message := fmt.Sprintf("Limit reached for %s: %d of %d used", quotaErr.Metric, quotaErr.Current, quotaErr.Limit)
		c.AbortWithStatusJSON(
			dto.GetHTTPStatus(dto.ErrCodeQuotaExceeded),
			dto.NewErrorResponse(dto.ErrCodeQuotaExceeded, message, requestID),
		)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, domainErr.Message, requestID))
		return
	}

	c.AbortWithStatusJSON(
		dto.GetHTTPStatus(dto.ErrCodeInternal),
		dto.NewErrorResponse(dto.ErrCodeInternal, "Quota check failed", requestID),
	)
}
