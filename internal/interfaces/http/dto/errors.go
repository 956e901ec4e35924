package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is used when query binding fails
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidDateRange is used when from is after to or a day is malformed
	ErrCodeInvalidDateRange = "ERR_INVALID_DATE_RANGE"
	// ErrCodeInvalidPreset is used for a preset outside 7/30/365
	ErrCodeInvalidPreset = "ERR_INVALID_PRESET"
	// ErrCodeInvalidTriggerParams is used when only one of from/to is given to a rebuild
	ErrCodeInvalidTriggerParams = "ERR_INVALID_TRIGGER_PARAMS"
	// ErrCodeInvalidWarehouseID is used when warehouseId is not a UUID
	ErrCodeInvalidWarehouseID = "ERR_INVALID_WAREHOUSE_ID"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// Availability error codes. Both are retryable.
const (
	// ErrCodeSourceUnavailable is used when the transactional or aggregate store is down
	ErrCodeSourceUnavailable = "ERR_SOURCE_UNAVAILABLE"
	// ErrCodePartialWrite is used when an aggregation run wrote only some days
	ErrCodePartialWrite = "ERR_PARTIAL_WRITE"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeInvalidDateRange:     http.StatusBadRequest,
	ErrCodeInvalidPreset:        http.StatusBadRequest,
	ErrCodeInvalidTriggerParams: http.StatusBadRequest,
	ErrCodeInvalidWarehouseID:   http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound: http.StatusNotFound,

	// Store outages -> 503 Service Unavailable
	ErrCodeSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodePartialWrite:      http.StatusServiceUnavailable,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"UNAUTHORIZED":           ErrCodeUnauthorized,
	"FORBIDDEN":              ErrCodeForbidden,
	"INVALID_DATE_RANGE":     ErrCodeInvalidDateRange,
	"INVALID_PRESET":         ErrCodeInvalidPreset,
	"INVALID_TRIGGER_PARAMS": ErrCodeInvalidTriggerParams,
	"INVALID_WAREHOUSE_ID":   ErrCodeInvalidWarehouseID,
	"SOURCE_UNAVAILABLE":     ErrCodeSourceUnavailable,
	"PARTIAL_WRITE":          ErrCodePartialWrite,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown pass through unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
