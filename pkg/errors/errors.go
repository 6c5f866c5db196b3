// Package errors defines the error kinds the HTTP layer knows how to render
// and the AppError carrying a client-safe message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limited")
)

// Codes written to the "kind" field of error responses.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeConflict        = "CONFLICT"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
)

const internalMessage = "an internal error occurred"

// kind ties a sentinel to its response. When message is empty the wrapped
// error text is shown, which only input errors are allowed to do.
type kind struct {
	sentinel error
	code     string
	status   int
	message  string
}

var kinds = []kind{
	{ErrNotFound, CodeNotFound, http.StatusNotFound, "resource not found"},
	{ErrAlreadyExists, CodeAlreadyExists, http.StatusConflict, "resource already exists"},
	{ErrConflict, CodeConflict, http.StatusConflict, "the resource was modified concurrently, retry the request"},
	{ErrInvalidInput, CodeInvalidInput, http.StatusBadRequest, ""},
	{ErrUnauthenticated, CodeUnauthenticated, http.StatusUnauthorized, "authentication required"},
	{ErrForbidden, CodeForbidden, http.StatusForbidden, "insufficient permissions"},
	{ErrRateLimited, CodeRateLimited, http.StatusTooManyRequests, "too many requests"},
}

func kindOf(sentinel error) kind {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return k
		}
	}
	return kind{code: CodeInternal, status: http.StatusInternalServerError, message: internalMessage}
}

// AppError is an error with a response already decided: Code and Message go
// to the client, Err stays server side.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// newError builds an AppError of the sentinel's kind. Extra causes are joined
// under the sentinel so errors.Is matches either.
func newError(sentinel error, message string, causes ...error) *AppError {
	k := kindOf(sentinel)
	err := sentinel
	if len(causes) > 0 {
		err = errors.Join(append([]error{sentinel}, causes...)...)
	}
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: err}
}

func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s %s not found", resource, id))
}

func AlreadyExists(resource, field, value string) *AppError {
	return newError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

func InvalidInput(message string) *AppError {
	return newError(ErrInvalidInput, message)
}

// Unauthenticated keeps causes reachable through errors.Is, so callers can
// tell apart failures that share one public message.
func Unauthenticated(message string, causes ...error) *AppError {
	return newError(ErrUnauthenticated, message, causes...)
}

func Forbidden(message string, causes ...error) *AppError {
	return newError(ErrForbidden, message, causes...)
}

func RateLimited(message string) *AppError {
	return newError(ErrRateLimited, message)
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: internalMessage, Status: http.StatusInternalServerError, Err: err}
}

// From resolves err into the AppError that should be rendered. An AppError
// anywhere in the chain wins; otherwise the first matching sentinel decides;
// anything else becomes Internal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if !errors.Is(err, k.sentinel) {
			continue
		}
		message := k.message
		if message == "" {
			message = err.Error()
		}
		return &AppError{Code: k.code, Message: message, Status: k.status, Err: err}
	}
	return Internal(err)
}

// HTTPStatus returns the status err is rendered with.
func HTTPStatus(err error) int {
	return From(err).Status
}
