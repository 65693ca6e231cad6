package report

import (
	"errors"
	"net/http"
)

// Kind classifies report errors for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindUnauthorized
)

// Error is a report failure carrying its kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds a report error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps an error to its HTTP status. Unknown errors are internal.
func StatusCode(err error) int {
	var rerr *Error
	if !errors.As(err, &rerr) {
		return http.StatusInternalServerError
	}

	switch rerr.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
