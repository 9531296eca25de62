// Package apierr carries the HTTP status and stable client message of a failed
// operation alongside its underlying cause.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Details returns the cause text, or "" when there is none.
func (e *Error) Details() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func New(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// Validation is a caller error detected before any write.
func Validation(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

// NotFound is an operation on an id that does not exist.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

// Internal is a store failure; message must be stable and free of internals.
func Internal(message string, cause error) *Error {
	return New(http.StatusInternalServerError, message, cause)
}

// As extracts an *Error from err. Unknown errors become a generic 500.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal server error", err)
}
