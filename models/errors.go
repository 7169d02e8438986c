package models

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeFetch       = "FETCH_ERROR"
	ErrCodeExtraction  = "EXTRACTION_ERROR"
	ErrCodeUpstreamAI  = "UPSTREAM_AI_ERROR"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// AppError is the internal error type carrying an error code.
// Message is safe to show to API callers; Err keeps the upstream cause for logs.
type AppError struct {
	Code       string
	Message    string
	Err        error
	RetryAfter time.Duration // only set for RATE_LIMITED
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status maps the error code to an HTTP status code.
func (e *AppError) Status() int {
	switch e.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new AppError.
func NewAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ValidationError reports bad or missing caller input.
func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message, nil)
}

// FetchError reports a failed static fetch or parse. The upstream message is
// kept in Message because callers are expected to see it.
func FetchError(err error) *AppError {
	return NewAppError(ErrCodeFetch, "basic scrape failed: "+err.Error(), err)
}

// ExtractionError reports a failed headless navigation or evaluation.
func ExtractionError(message string, err error) *AppError {
	if err != nil {
		message = message + ": " + err.Error()
	}
	return NewAppError(ErrCodeExtraction, message, err)
}

// UpstreamAIError reports any failure talking to the LLM service. The
// upstream detail stays in Err and is not surfaced to callers.
func UpstreamAIError(message string, err error) *AppError {
	return NewAppError(ErrCodeUpstreamAI, message, err)
}

// RateLimitedError reports a rejected request with its retry delay.
func RateLimitedError(retryAfter time.Duration) *AppError {
	e := NewAppError(ErrCodeRateLimited, "too many requests, try again in a few seconds", nil)
	e.RetryAfter = retryAfter
	return e
}

// AsAppError converts any error into an *AppError, wrapping unknown errors
// as INTERNAL_ERROR with a generic message.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(ErrCodeInternal, "internal server error", err)
}

// IsCode reports whether err is an *AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
