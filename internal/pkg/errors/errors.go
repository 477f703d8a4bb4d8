package errors

import (
	"errors"
	"net/http"
)

// Kind classifies an API error so the HTTP boundary can pick a status code
// without matching on error strings.
type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindQuota
	KindNotFound
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindConflict, KindQuota:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func Quota(message string) *Error {
	return &Error{Kind: KindQuota, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Wrap(err error, message string) *Error {
	return &Error{Kind: KindServer, Message: message, Err: err}
}

// AsAPIError extracts an *Error from err, or wraps err as a generic server
// error so the boundary always has a status and a safe user-facing message.
func AsAPIError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindServer, Message: "An unexpected error occurred.", Err: err}
}
