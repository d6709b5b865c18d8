// Package errors defines the service error taxonomy used by the HTTP handlers.
//
// Three classes recur: client input errors (400), upstream or dependency
// failures (500/502) and auth failures (401). Handlers convert any error to a
// ServiceError with GetServiceError before writing the response.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine readable error code.
type Code string

const (
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeUpstream     Code = "UPSTREAM_ERROR"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// ServiceError is an error with an HTTP mapping.
type ServiceError struct {
	Code       Code
	Message    string
	Details    map[string]interface{}
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a detail key to the error and returns it.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error and returns e.
func (e *ServiceError) WithCause(err error) *ServiceError {
	e.Err = err
	return e
}

// DetailString returns the wrapped error text, if any, for the "details" field.
func (e *ServiceError) DetailString() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if v, ok := e.Details["reason"].(string); ok {
		return v
	}
	return ""
}

func newError(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest reports malformed or missing client input.
func BadRequest(message string) *ServiceError {
	return newError(CodeBadRequest, http.StatusBadRequest, message, nil)
}

// Unauthorized reports missing credentials.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// InvalidToken reports a token that failed validation.
func InvalidToken(message string, err error) *ServiceError {
	if message == "" {
		message = "Invalid or expired token"
	}
	return newError(CodeInvalidToken, http.StatusUnauthorized, message, err)
}

// NotFound reports a missing resource.
func NotFound(resource string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, resource+" not found", nil)
}

// Upstream reports a failed call to a third-party dependency.
func Upstream(message string, err error) *ServiceError {
	return newError(CodeUpstream, http.StatusBadGateway, message, err)
}

// Internal reports an unexpected server-side failure.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// RateLimitExceeded reports a throttled client.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// GetServiceError extracts a ServiceError from err's chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
