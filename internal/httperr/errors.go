// Package httperr defines the error taxonomy shared by all services and its
// mapping onto HTTP responses. Every service operation returns either a value
// or one of these typed failures; handlers translate them with Respond.
package httperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies a failure for transport mapping and client retry semantics.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidState
	KindExpired
	KindLimitExceeded
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error      { return newError(KindValidation, msg) }
func Unauthenticated(msg string) *Error { return newError(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error       { return newError(KindForbidden, msg) }
func NotFound(msg string) *Error        { return newError(KindNotFound, msg) }
func Conflict(msg string) *Error        { return newError(KindConflict, msg) }
func InvalidState(msg string) *Error    { return newError(KindInvalidState, msg) }
func Expired(msg string) *Error         { return newError(KindExpired, msg) }
func LimitExceeded(msg string) *Error   { return newError(KindLimitExceeded, msg) }

// Internal wraps a persistence or collaborator failure. The wrapped error is
// logged server-side, never surfaced to the client.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal for untyped
// errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps a failure to its HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidState:
		return fiber.StatusBadRequest
	case KindUnauthenticated:
		return fiber.StatusUnauthorized
	case KindForbidden, KindExpired, KindLimitExceeded:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes the standard error envelope for err.
func Respond(c *fiber.Ctx, err error) error {
	msg := "Internal server error"
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		msg = e.Message
	}
	return c.Status(StatusCode(err)).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}
