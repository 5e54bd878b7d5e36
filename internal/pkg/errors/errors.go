// Package errors defines AppError, the error type handlers render.
//
// An AppError pairs a stable code (see codes.go) with a message that is safe
// to show in the portal UI. The wrapped cause goes to the log only.
//
// Import Path: supportportal.io/portal/internal/pkg/errors
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels of the repository layer. Use cases translate them into coded
// AppErrors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// AppError is an error with a code, a user-facing message and an HTTP status.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`

	// Params names the records involved (client ids, slots, failed step) so
	// an operator can reconcile by hand.
	Params map[string]interface{} `json:"params,omitempty"`

	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// New builds an AppError without a cause.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap builds an AppError around err.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	e := New(code, message, httpStatus)
	e.Err = err
	return e
}

// WithParams merges params into the error and returns it.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	if e == nil || len(params) == 0 {
		return e
	}
	if e.Params == nil {
		e.Params = make(map[string]interface{}, len(params))
	}
	for k, v := range params {
		e.Params[k] = v
	}
	return e
}

func NotFound(code, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}

func BadRequest(code, message string) *AppError {
	return New(code, message, http.StatusBadRequest)
}

func Unauthorized(code, message string) *AppError {
	return New(code, message, http.StatusUnauthorized)
}

func Forbidden(code, message string) *AppError {
	return New(code, message, http.StatusForbidden)
}

func Conflict(code, message string) *AppError {
	return New(code, message, http.StatusConflict)
}

func Internal(code, message string) *AppError {
	return New(code, message, http.StatusInternalServerError)
}

// IsAppError returns the first AppError in err's chain.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	return appErr, true
}

// HasCode reports whether err carries an AppError with code.
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}
