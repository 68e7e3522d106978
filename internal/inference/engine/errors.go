package engine

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNoProviders        Kind = "NO_PROVIDERS"
	KindProviderTimeout    Kind = "PROVIDER_TIMEOUT"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindInvalidAPIKey      Kind = "INVALID_API_KEY"
	KindEmptyContent       Kind = "EMPTY_CONTENT"
	KindAllProvidersFailed Kind = "ALL_PROVIDERS_FAILED"
	KindProviderError      Kind = "PROVIDER_ERROR"
)

// Error is the failure type returned by adapters and the router.
type Error struct {
	Kind       Kind
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatusCode() int { return e.StatusCode }

func NewError(kind Kind, provider, model string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Model: model, Err: err}
}

// KindOf returns the outermost error kind, or PROVIDER_ERROR for foreign
// errors. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindProviderError
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
