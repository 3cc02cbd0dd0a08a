package dto

import "net/http"

// Error codes surfaced by the control plane API. Domain error codes map
// onto these one-to-one where possible so clients see stable identifiers.

// General error codes
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeValidation = "ERR_VALIDATION"
)

// Resource error codes
const (
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Tenant and quota error codes
const (
	// ErrCodeQuotaExceeded is returned when usage would pass the
	// effective limit
	ErrCodeQuotaExceeded = "ERR_QUOTA_EXCEEDED"
	// ErrCodeTenantUnavailable is returned for deleted or failed tenants
	ErrCodeTenantUnavailable = "ERR_TENANT_UNAVAILABLE"
	// ErrCodePoolUnavailable is returned when the tenant's storage pool
	// cannot be reached
	ErrCodePoolUnavailable = "ERR_POOL_UNAVAILABLE"
	// ErrCodeProvisioningFailed is returned when storage provisioning or
	// teardown fails
	ErrCodeProvisioningFailed = "ERR_PROVISIONING_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	ErrCodeQuotaExceeded:      http.StatusTooManyRequests,
	ErrCodeTenantUnavailable:  http.StatusServiceUnavailable,
	ErrCodePoolUnavailable:    http.StatusServiceUnavailable,
	ErrCodeProvisioningFailed: http.StatusServiceUnavailable,
}

// retryableCodes are transient failures where retrying the same request
// later can succeed
var retryableCodes = map[string]bool{
	ErrCodePoolUnavailable:    true,
	ErrCodeProvisioningFailed: true,
}

// GetHTTPStatus returns the HTTP status code for an error code, defaulting
// to 500 for unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether a code marks a transient failure
func IsRetryable(code string) bool {
	return retryableCodes[code]
}

// domainErrorCodeMapping maps domain error codes to API error codes.
// Validation-flavored domain codes all fold into ERR_VALIDATION.
var domainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"CONFLICT":            ErrCodeConflict,
	"INVALID_STATE":       ErrCodeInvalidState,
	"TENANT_UNAVAILABLE":  ErrCodeTenantUnavailable,
	"POOL_UNAVAILABLE":    ErrCodePoolUnavailable,
	"INVALID_INPUT":       ErrCodeBadRequest,
	"INVALID_NAME":        ErrCodeValidation,
	"INVALID_SUBDOMAIN":   ErrCodeValidation,
	"INVALID_PLAN":        ErrCodeValidation,
	"INVALID_LIMIT":       ErrCodeValidation,
	"INVALID_TENANT":      ErrCodeValidation,
	"INVALID_METRIC":      ErrCodeValidation,
	"INVALID_QUANTITY":    ErrCodeValidation,
	"INVALID_PERIOD":      ErrCodeValidation,
	"INVALID_LOCATION":    ErrCodeValidation,
	"PROVISIONING_FAILED": ErrCodeProvisioningFailed,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
