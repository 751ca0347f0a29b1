package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDuplicateDocument = errors.New("duplicate document identifier")
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidInput      = errors.New("invalid input")
	ErrCorruptSnapshot   = errors.New("corrupt index snapshot")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// DuplicateDocumentError is returned by index construction when two documents
// share an identifier.
type DuplicateDocumentError struct {
	DocID string
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateDocument.Error(), e.DocID)
}

func (e *DuplicateDocumentError) Unwrap() error {
	return ErrDuplicateDocument
}

// MissingFieldError reports a question record lacking a required field.
// Index is the record's position in its question set, or -1 when unknown.
type MissingFieldError struct {
	Index int
	Field string
}

func (e *MissingFieldError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMissingField.Error(), e.Field)
	}
	return fmt.Sprintf("%s: record %d lacks %s", ErrMissingField.Error(), e.Index, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

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

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
