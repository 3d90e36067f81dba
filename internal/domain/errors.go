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
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeIntegrity    ErrorCode = "INTEGRITY_ERROR"

	// Field validation
	CodeMissingField  ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeOutOfRange    ErrorCode = "OUT_OF_RANGE"

	// Eligibility errors
	CodeAlreadyAttempted      ErrorCode = "ALREADY_ATTEMPTED"
	CodeMaxAttemptsReached    ErrorCode = "MAX_ATTEMPTS_REACHED"
	CodePrerequisiteNotMet    ErrorCode = "PREREQUISITE_NOT_MET"
	CodeNoQualifyingEnrolment ErrorCode = "NO_QUALIFYING_ENROLMENT"
	CodeRequirementSatisfied  ErrorCode = "REQUIREMENT_SATISFIED"

	// Answer validation errors
	CodeMissingRequiredAnswer ErrorCode = "MISSING_REQUIRED_ANSWER"
	CodeTableRowMismatch      ErrorCode = "TABLE_ROW_MISMATCH"
	CodeUnsupportedFileType   ErrorCode = "UNSUPPORTED_FILE_TYPE"
	CodeInvalidAnswer         ErrorCode = "INVALID_ANSWER"

	// Attempt errors
	CodeQuizNotFound    ErrorCode = "QUIZ_NOT_FOUND"
	CodeAttemptNotFound ErrorCode = "ATTEMPT_NOT_FOUND"
	CodeAttemptConflict ErrorCode = "ATTEMPT_CONFLICT"
	CodeInvalidState    ErrorCode = "INVALID_ATTEMPT_STATE"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Err     error                  `json:"-"`
	Context map[string]interface{} `json:"-"`
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

// WithContext attaches a detail entry that is exposed to the caller.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(CodeInternal, message, err)
}

func NewIntegrityError(message string) *DomainError {
	return NewError(CodeIntegrity, message, nil)
}

func NewQuizNotFoundError(quizID int64) *DomainError {
	return NewError(CodeQuizNotFound, fmt.Sprintf("Quiz not found with ID: %d", quizID), nil)
}

func NewAttemptNotFoundError(attemptID string) *DomainError {
	return NewError(CodeAttemptNotFound, fmt.Sprintf("Attempt not found with ID: %s", attemptID), nil)
}

func NewInvalidAnswerError(message string) *DomainError {
	return NewError(CodeInvalidAnswer, message, nil)
}

func NewAttemptConflictError(err error) *DomainError {
	return NewError(CodeAttemptConflict, "Attempt was modified concurrently, re-fetch the attempt state and resubmit", err)
}

func NewInvalidStateError(message string) *DomainError {
	return NewError(CodeInvalidState, message, nil)
}

// ErrUniqueViolation is returned by repositories when a write loses a race
// against a unique constraint.
var ErrUniqueViolation = errors.New("unique constraint violated")

// ErrStaleWrite is returned by repositories when an optimistic version check fails.
var ErrStaleWrite = errors.New("stale write")

// CodeOf returns the code of a DomainError, or CodeInternal for anything else.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsEligibilityCode reports whether the code belongs to the eligibility family.
func IsEligibilityCode(code ErrorCode) bool {
	switch code {
	case CodeAlreadyAttempted, CodeMaxAttemptsReached, CodePrerequisiteNotMet,
		CodeNoQualifyingEnrolment, CodeRequirementSatisfied:
		return true
	}
	return false
}

// ValidationError describes one invalid field of a request.
type ValidationError struct {
	Field   string      `json:"field"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of field validation errors
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	if len(v) == 1 {
		return v[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", v[0].Error(), len(v)-1)
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Code: CodeMissingField, Message: field + " is required"}
}

func NewInvalidFormatError(field string, value interface{}) ValidationError {
	return ValidationError{Field: field, Code: CodeInvalidFormat, Message: field + " has an invalid format", Value: value}
}

func NewOutOfRangeError(field string, value interface{}, min, max int) ValidationError {
	return ValidationError{
		Field:   field,
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("%s must be between %d and %d", field, min, max),
		Value:   value,
	}
}
