// Package apperror is the error taxonomy shared by services and handlers.
// Services return (or wrap) *Error values; the HTTP layer turns the Kind into
// a status code and the Code/Message/Details into the response envelope.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthorization
	KindUnauthenticated
	KindUpstream
)

// FieldError is one entry of a validation details array.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []FieldError
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Kind and Code so wrapped copies of a sentinel still match it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Details: details}
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func Forbidden(code, message string) *Error {
	return New(KindAuthorization, code, message)
}

func Unauthenticated(code, message string) *Error {
	return New(KindUnauthenticated, code, message)
}

// Upstream wraps a failure of the database or an external API.
func Upstream(code string, err error) error {
	return fmt.Errorf("%w: %w", New(KindUpstream, code, "upstream failure"), err)
}

// Invalid builds a validation error for a single field.
func Invalid(field, message string) *Error {
	return Validation("invalid_request", message, FieldError{Field: field, Message: message})
}

// From extracts the *Error in err's chain. Unknown errors become internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(KindInternal, "internal_error", "internal error")
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// Collector accumulates field errors and yields one validation error.
type Collector struct {
	details []FieldError
}

func (c *Collector) Add(field, message string) {
	c.details = append(c.details, FieldError{Field: field, Message: message})
}

func (c *Collector) Err() error {
	if len(c.details) == 0 {
		return nil
	}
	return Validation("validation_failed", "validation failed", c.details...)
}
