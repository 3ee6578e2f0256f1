package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrMissingQuestion   = NewDomainError(ErrCodeValidation, "missing 'question' field")
	ErrMissingQuery      = NewDomainError(ErrCodeValidation, "missing 'query' field")
	ErrMissingTitle      = NewDomainError(ErrCodeValidation, "missing required field: title")
	ErrMissingContent    = NewDomainError(ErrCodeValidation, "missing required field: content")
	ErrInvalidSourceType = NewDomainError(ErrCodeValidation, "invalid knowledge source type")
)

// Not found errors
var (
	ErrRoadmapItemNotFound    = NewDomainError(ErrCodeNotFound, "roadmap item not found")
	ErrRoadmapSectionNotFound = NewDomainError(ErrCodeNotFound, "roadmap section not found")
	ErrLogEntryNotFound       = NewDomainError(ErrCodeNotFound, "log entry not found")
	ErrDocumentNotFound       = NewDomainError(ErrCodeNotFound, "document not found")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)
