package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes surfaced to API clients.
const (
	CodeValidation         = "VALIDATION"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodePersistenceFailed  = "PERSISTENCE_FAILED"
	CodeNoProviders        = "NO_PROVIDERS"
	CodeProviderTimeout    = "PROVIDER_TIMEOUT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInvalidAPIKey      = "INVALID_API_KEY"
	CodeEmptyContent       = "EMPTY_CONTENT"
	CodeAllProvidersFailed = "ALL_PROVIDERS_FAILED"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeInternal           = "INTERNAL"
)

type Error struct {
	Status int
	Code   string
	Err    error
	// Message is the client-facing text. When empty the handler picks a
	// generic message for the route.
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg, Err: errors.New(msg)}
}

func NotFound(what string) *Error {
	msg := what + " not found"
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg, Err: errors.New(msg)}
}

func Persistence(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodePersistenceFailed, Err: err}
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}
