package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error so transports can map it.
type Kind string

const (
	KindInternal             Kind = "internal"
	KindValidation           Kind = "validation"
	KindAuth                 Kind = "auth"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindInvalidState         Kind = "invalid_state"
	KindNoEligibleRecipients Kind = "no_eligible_recipients"
	KindConfiguration        Kind = "configuration"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrAuth                 = &Error{Kind: KindAuth}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrNoEligibleRecipients = &Error{Kind: KindNoEligibleRecipients}
	ErrConfiguration        = &Error{Kind: KindConfiguration}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Auth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

// NotFound reports a missing entity, e.g. NotFound("campaign", id).
func NotFound(entity string, id any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func NoEligibleRecipients(format string, args ...any) error {
	return &Error{Kind: KindNoEligibleRecipients, Message: fmt.Sprintf(format, args...)}
}

func Configuration(msg string, err error) error {
	return &Error{Kind: KindConfiguration, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindNoEligibleRecipients:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
