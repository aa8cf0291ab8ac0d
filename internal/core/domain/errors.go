package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across layers. Wrap them with fmt.Errorf("...: %w").
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrAgentUnavailable     = errors.New("agent unavailable")
	ErrAgentNoContent       = errors.New("agent produced no content")
	ErrMalformedAgentOutput = errors.New("malformed agent output")
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeValidation indicates a well-formed request that failed field validation.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeUnauthorized indicates a missing, invalid or expired credential.
	ErrorTypeUnauthorized ErrorType = "unauthorized"

	// ErrorTypeConflict indicates the resource already exists.
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeAgentUnavailable indicates the referenced agent is not initialized.
	ErrorTypeAgentUnavailable ErrorType = "agent_unavailable"

	// ErrorTypeAgentNoContent indicates the agent returned an empty payload.
	ErrorTypeAgentNoContent ErrorType = "agent_no_content"

	// ErrorTypeMalformedOutput indicates agent output failed extraction or validation.
	ErrorTypeMalformedOutput ErrorType = "malformed_agent_output"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// APIError is the canonical error surfaced to HTTP clients. Message is always
// generic; the wrapped cause stays server-side.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message returned to the client
	Message string `json:"detail"`

	// StatusCode overrides the status derived from Type
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeConflict:
		return http.StatusBadRequest
	case ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeAgentUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCause records the internal error behind e.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrValidation creates a field validation error.
func ErrValidation(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message)
}

// ErrAuthentication creates an unauthorized error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeUnauthorized, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// AsAPIError converts err into an APIError. Known sentinels map to their
// error type; fallback is used as the message for everything the client
// should only see generically.
func AsAPIError(err error, fallback string) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return NewAPIError(ErrorTypeUnauthorized, "Invalid access token").WithCause(err)
	case errors.Is(err, ErrInvalidCredentials):
		return NewAPIError(ErrorTypeUnauthorized, "Invalid username or password").WithCause(err)
	case errors.Is(err, ErrUserExists):
		return NewAPIError(ErrorTypeConflict, "User already exists").WithCause(err)
	case errors.Is(err, ErrAgentNoContent):
		return NewAPIError(ErrorTypeAgentNoContent, "Agent did not produce content.").WithCause(err)
	case errors.Is(err, ErrMalformedAgentOutput):
		return NewAPIError(ErrorTypeMalformedOutput, fallback).WithCause(err)
	default:
		return NewAPIError(ErrorTypeServer, fallback).WithCause(err)
	}
}
