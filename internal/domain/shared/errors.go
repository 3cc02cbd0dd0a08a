package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound          = NewDomainError("NOT_FOUND", "Resource not found")
	ErrConflict          = NewDomainError("CONFLICT", "Resource already exists")
	ErrInvalidInput      = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState      = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrTenantUnavailable = NewDomainError("TENANT_UNAVAILABLE", "Tenant is deleted or failed and cannot serve requests")
	ErrPoolUnavailable   = NewDomainError("POOL_UNAVAILABLE", "Connection pool could not be created")
)

// QuotaExceededError is returned when an operation would push usage past the
// effective limit. It is an expected outcome, not an infrastructure fault,
// and carries enough detail for a user-facing "limit reached" message.
type QuotaExceededError struct {
	Metric    string
	Current   int64
	Requested int64
	Limit     int64
}

// Error implements the error interface
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf(
		"quota exceeded for %s: current %d + requested %d exceeds limit %d",
		e.Metric, e.Current, e.Requested, e.Limit,
	)
}

// NewQuotaExceededError creates a new QuotaExceededError
func NewQuotaExceededError(metric string, current, requested, limit int64) *QuotaExceededError {
	return &QuotaExceededError{
		Metric:    metric,
		Current:   current,
		Requested: requested,
		Limit:     limit,
	}
}

// ProvisioningError is returned when creating or destroying external tenant
// resources fails. It is retryable from the caller's point of view: any
// partially created resources have been compensated before this surfaces.
type ProvisioningError struct {
	TenantID string
	Stage    string // create_database, create_role, grant, migrate, drop
	Err      error
}

// Error implements the error interface
func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed for tenant %s at stage %s: %v", e.TenantID, e.Stage, e.Err)
}

// Unwrap exposes the underlying cause
func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// NewProvisioningError creates a new ProvisioningError
func NewProvisioningError(tenantID, stage string, err error) *ProvisioningError {
	return &ProvisioningError{TenantID: tenantID, Stage: stage, Err: err}
}
