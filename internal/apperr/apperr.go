// Package apperr defines the error kinds shared between services and HTTP
// handlers. Services return *Error values, handlers turn them into status
// codes with Status and into client messages with Message.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	InvalidInput
	Conflict
	InvalidCredentials
	InvalidOrExpired
	AuthFailed
	NotVerified
	Deactivated
	Forbidden
	NotFound
	DeliveryFailed
)

var kindNames = map[Kind]string{
	Internal:           "internal",
	InvalidInput:       "invalid_input",
	Conflict:           "conflict",
	InvalidCredentials: "invalid_credentials",
	InvalidOrExpired:   "invalid_or_expired",
	AuthFailed:         "auth_failed",
	NotVerified:        "not_verified",
	Deactivated:        "deactivated",
	Forbidden:          "forbidden",
	NotFound:           "not_found",
	DeliveryFailed:     "delivery_failed",
}

var kindStatus = map[Kind]int{
	Internal:           http.StatusInternalServerError,
	InvalidInput:       http.StatusBadRequest,
	Conflict:           http.StatusConflict,
	InvalidCredentials: http.StatusUnauthorized,
	InvalidOrExpired:   http.StatusBadRequest,
	AuthFailed:         http.StatusUnauthorized,
	NotVerified:        http.StatusUnauthorized,
	Deactivated:        http.StatusUnauthorized,
	Forbidden:          http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	DeliveryFailed:     http.StatusBadGateway,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "unknown"
}

// Error is a domain error. Msg is safe to show to clients, Err is the
// underlying cause and is only ever logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ", " + e.Err.Error()
	}

	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. An empty Msg on the target
// matches any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// KindOf returns the kind of the first *Error in err's chain, or Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Internal
}

func Status(err error) int {
	return kindStatus[KindOf(err)]
}

// Message returns the client facing message for err. Internal errors never
// leak their cause.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == Internal || e.Msg == "" {
		return "Internal server error"
	}

	return e.Msg
}
