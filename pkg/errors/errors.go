// Package errors defines the sentinel errors shared by the indexing and
// search packages, the typed errors that wrap them, and their mapping onto
// HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrParse                = errors.New("query parse error")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrIndexConsistency     = errors.New("index consistency warning")
	ErrStore                = errors.New("store error")
	ErrTimeout              = errors.New("operation timed out")
	ErrInternal             = errors.New("internal error")
)

// AppError attaches a caller-facing message and status code to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// ParseError reports malformed query syntax. Position is the byte offset in
// Query where the problem was detected.
type ParseError struct {
	Query    string
	Position int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at position %d: %s", ErrParse.Error(), e.Position, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Unsupported returns an ErrUnsupportedOperation naming the operation and the
// component that refused it.
func Unsupported(component, operation string) error {
	return fmt.Errorf("%w: %s does not support %s", ErrUnsupportedOperation, component, operation)
}

// FieldError describes a document field that could not be tokenized.
type FieldError struct {
	ObjectID string
	Field    string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: object %q field %q: %v", ErrIndexConsistency.Error(), e.ObjectID, e.Field, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrIndexConsistency, e.Err}
}

// StoreErr wraps an error raised by a storage collaborator so callers can
// match it with errors.Is(err, ErrStore) while keeping the original cause.
func StoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrParse), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedOperation):
		return http.StatusNotImplemented
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
