package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when a dependency (database, redis) is down
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when a callback signature is missing or wrong
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when a status transition is not allowed
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeVendorNotEligible is used when the vendor is not APPROVED
	ErrCodeVendorNotEligible = "ERR_VENDOR_NOT_ELIGIBLE"
	// ErrCodeNegativeNetAmount is used when deductions exceed the commission total
	ErrCodeNegativeNetAmount = "ERR_NEGATIVE_NET_AMOUNT"
	// ErrCodeReturnWindowOpen is used when an entry is approved before its return window closed
	ErrCodeReturnWindowOpen = "ERR_RETURN_WINDOW_OPEN"
)

// Payout executor error codes
const (
	ErrCodeExecutorTransient = "ERR_EXECUTOR_TRANSIENT"
	ErrCodeExecutorPermanent = "ERR_EXECUTOR_PERMANENT"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	ErrCodeTimeout     = "ERR_TIMEOUT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// An illegal transition conflicts with the current state of the resource
	ErrCodeInvalidState: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeVendorNotEligible: http.StatusUnprocessableEntity,
	ErrCodeNegativeNetAmount: http.StatusUnprocessableEntity,
	ErrCodeReturnWindowOpen:  http.StatusUnprocessableEntity,

	ErrCodeExecutorTransient: http.StatusServiceUnavailable,
	ErrCodeExecutorPermanent: http.StatusBadGateway,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeTimeout:     http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps shared.DomainError codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"VALIDATION_ERROR":         ErrCodeValidation,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
	"INVALID_STATE_TRANSITION": ErrCodeInvalidState,
	"VENDOR_NOT_ELIGIBLE":      ErrCodeVendorNotEligible,
	"NEGATIVE_NET_AMOUNT":      ErrCodeNegativeNetAmount,
	"RETURN_WINDOW_OPEN":       ErrCodeReturnWindowOpen,
	"EXECUTOR_TRANSIENT":       ErrCodeExecutorTransient,
	"EXECUTOR_PERMANENT":       ErrCodeExecutorPermanent,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
