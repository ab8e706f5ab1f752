package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrConflict     ErrorCode = "CONFLICT"

	// Quiz specific errors
	ErrQuizNotFound    ErrorCode = "QUIZ_NOT_FOUND"
	ErrLLMServiceError ErrorCode = "LLM_SERVICE_ERROR"

	// Generation pipeline errors
	ErrFetch            ErrorCode = "FETCH_ERROR"
	ErrNoContent        ErrorCode = "NO_CONTENT"
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrPersist          ErrorCode = "PERSIST_ERROR"
	ErrPoolExhausted    ErrorCode = "POOL_EXHAUSTED"
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

// Is reports whether target is a DomainError with the same code, so
// errors.Is(err, domain.NewError(domain.ErrNoContent, "", nil)) works across wrapping.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
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

// New creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &DomainError{Code: code})
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewConflictError(message string, err error) *DomainError {
	return NewError(ErrConflict, message, err)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewQuizNotFoundError(quizID string) *DomainError {
	return NewError(ErrQuizNotFound, fmt.Sprintf("Quiz not found with ID: %s", quizID), nil)
}

func NewLLMServiceError(err error) *DomainError {
	return NewError(ErrLLMServiceError, "Failed to process with LLM service", err)
}

func NewFetchError(path string, err error) *DomainError {
	return NewError(ErrFetch, fmt.Sprintf("failed to fetch material %q", path), err)
}

func NewNoContentError(message string) *DomainError {
	return NewError(ErrNoContent, message, nil)
}

func NewGenerationFailedError(attempts int, err error) *DomainError {
	return NewError(ErrGenerationFailed, fmt.Sprintf("no valid questions after %d attempts", attempts), err)
}

func NewPersistError(err error) *DomainError {
	return NewError(ErrPersist, "failed to persist questions", err)
}

func NewPoolExhaustedError(donorID string) *DomainError {
	return NewError(ErrPoolExhausted, fmt.Sprintf("standby quiz %s no longer holds enough questions", donorID), nil)
}
