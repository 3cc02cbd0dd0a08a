package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeQuotaExceeded, http.StatusTooManyRequests},
		{ErrCodeTenantUnavailable, http.StatusServiceUnavailable},
		{ErrCodePoolUnavailable, http.StatusServiceUnavailable},
		{ErrCodeProvisioningFailed, http.StatusServiceUnavailable},
		{ErrCodeValidation, http.StatusBadRequest},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeValidation, NormalizeErrorCode("INVALID_SUBDOMAIN"))
	assert.Equal(t, ErrCodePoolUnavailable, NormalizeErrorCode("POOL_UNAVAILABLE"))
	// unknown codes pass through
	assert.Equal(t, "CUSTOM", NormalizeErrorCode("CUSTOM"))
}

func TestNewErrorResponse_RetryableFlag(t *testing.T) {
	resp := NewErrorResponse(ErrCodePoolUnavailable, "pool down", "req-1")
	assert.False(t, resp.Success)
	assert.True(t, resp.Error.Retryable)
	assert.Equal(t, "req-1", resp.Error.RequestID)

	resp = NewErrorResponse(ErrCodeNotFound, "missing", "")
	assert.False(t, resp.Error.Retryable)
}
