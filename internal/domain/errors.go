package domain

import (
	"fmt"
	"time"
)

// ServiceError represents a standardized error response
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrCatalog        = "CATALOG_ERROR"
	ErrExternalAPI    = "EXTERNAL_API_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CatalogError reports a malformed knowledge base or safety table at load time.
// It is fatal: the process must not start against an incomplete catalog.
type CatalogError struct {
	Source string `json:"source"`
	Entry  string `json:"entry,omitempty"`
	Reason string `json:"reason"`
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("malformed catalog %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("malformed catalog %s: entry %q: %s", e.Source, e.Entry, e.Reason)
}

// NewServiceError creates a new ServiceError with timestamp
func NewServiceError(code, message, details, requestID string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewCatalogError creates a new CatalogError
func NewCatalogError(source, entry, reason string) *CatalogError {
	return &CatalogError{
		Source: source,
		Entry:  entry,
		Reason: reason,
	}
}
