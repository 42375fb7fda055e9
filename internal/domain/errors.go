package domain

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Pipeline specific errors
	ErrInvalidURL          ErrorCode = "INVALID_URL"
	ErrFetchFailed         ErrorCode = "FETCH_FAILED"
	ErrPageParseFailed     ErrorCode = "PAGE_PARSE_FAILED"
	ErrInsufficientContent ErrorCode = "INSUFFICIENT_CONTENT"
	ErrGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrMalformedOutput     ErrorCode = "MALFORMED_OUTPUT"
	ErrDuplicateURL        ErrorCode = "DUPLICATE_URL"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == code
}

// Helper functions for common errors
func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidURLError(url string) *DomainError {
	return NewError(ErrInvalidURL, fmt.Sprintf("Invalid or unreachable URL: %s", url), nil)
}

func NewFetchError(url string, err error) *DomainError {
	return NewError(ErrFetchFailed, fmt.Sprintf("Failed to fetch URL: %s", url), err)
}

func NewPageParseError(message string) *DomainError {
	return NewError(ErrPageParseFailed, message, nil)
}

func NewInsufficientContentError(url string) *DomainError {
	return NewError(ErrInsufficientContent,
		fmt.Sprintf("Could not extract enough content from %s to generate a quiz", url), nil)
}

func NewGenerationError(err error) *DomainError {
	return NewError(ErrGenerationFailed, "Failed to generate quiz with LLM backend", err)
}

// NewMalformedOutputError wraps rawErr which should carry the offending
// backend text so it survives into the logs.
func NewMalformedOutputError(message string, rawErr error) *DomainError {
	return NewError(ErrMalformedOutput, message, rawErr)
}

func NewDuplicateURLError(url string) *DomainError {
	return NewError(ErrDuplicateURL, fmt.Sprintf("A quiz already exists for URL: %s", url), nil)
}
