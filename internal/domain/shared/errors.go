package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped sentinels compare equal
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return e.Code == de.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared across bounded contexts
const (
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeValidation             = "VALIDATION_ERROR"
	CodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeVendorNotEligible      = "VENDOR_NOT_ELIGIBLE"
	CodeNegativeNetAmount      = "NEGATIVE_NET_AMOUNT"
	CodeReturnWindowOpen       = "RETURN_WINDOW_OPEN"
	CodeExecutorTransient      = "EXECUTOR_TRANSIENT"
	CodeExecutorPermanent      = "EXECUTOR_PERMANENT"
)

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrValidation             = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict    = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidStateTransition = NewDomainError(CodeInvalidStateTransition, "Operation not allowed in current state")
	ErrVendorNotEligible      = NewDomainError(CodeVendorNotEligible, "Vendor is not eligible")
	ErrNegativeNetAmount      = NewDomainError(CodeNegativeNetAmount, "Net payout amount is negative")
)

// NewValidationError creates a VALIDATION_ERROR with a specific message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// CodeOf extracts the domain error code from err, or "" when err is not a DomainError
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
