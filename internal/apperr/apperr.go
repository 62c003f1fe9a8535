// Package apperr holds the error taxonomy shared by the membership core and
// the request pipeline. Each Kind is one variant; the wire representation is
// produced by pkg/response at the handler boundary.
package apperr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"gorm.io/gorm"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindForbidden
	KindRateLimited
	KindStorage
	KindNotFound
	KindPoolExhausted
	KindConnectivity
	KindUnauthorized
	KindMissingToken
	KindUnknownToken
	KindBadJSON
	KindNotJSON
	KindInvalidParam
	KindUserInUse
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindStorage:
		return "storage"
	case KindNotFound:
		return "not_found"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindConnectivity:
		return "connectivity"
	case KindUnauthorized:
		return "unauthorized"
	case KindMissingToken:
		return "missing_token"
	case KindUnknownToken:
		return "unknown_token"
	case KindBadJSON:
		return "bad_json"
	case KindNotJSON:
		return "not_json"
	case KindInvalidParam:
		return "invalid_param"
	case KindUserInUse:
		return "user_in_use"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is safe to show to clients; Err keeps
// the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimitedMessage is returned when an identical transition was just applied.
const RateLimitedMessage = "Try to set the membership again!"

// NotInvitedMessage is returned when a join is attempted without an invite.
const NotInvitedMessage = "You are not invited to this room."

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func RateLimited() *Error { return &Error{Kind: KindRateLimited, Message: RateLimitedMessage} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func MissingToken() *Error {
	return &Error{Kind: KindMissingToken, Message: "Missing access token."}
}

func UnknownToken() *Error {
	return &Error{Kind: KindUnknownToken, Message: "Unrecognised access token."}
}

func BadJSON(msg string) *Error { return &Error{Kind: KindBadJSON, Message: msg} }

func NotJSON(msg string) *Error { return &Error{Kind: KindNotJSON, Message: msg} }

func InvalidParam(msg string) *Error { return &Error{Kind: KindInvalidParam, Message: msg} }

func UserInUse(msg string) *Error { return &Error{Kind: KindUserInUse, Message: msg} }

func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Message: "A database error occurred.", Err: err}
}

func PoolExhausted(err error) *Error {
	return &Error{Kind: KindPoolExhausted, Message: "No database connection available.", Err: err}
}

func Connectivity(err error) *Error {
	return &Error{Kind: KindConnectivity, Message: "The database is unreachable.", Err: err}
}

// KindOf returns the Kind of err, or KindUnknown when err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromStorage classifies an error returned by gorm. Already classified errors
// pass through unchanged; record-not-found maps to msg as NotFound.
func FromStorage(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, gorm.ErrRecordNotFound) && notFoundMsg != "" {
		return NotFound(notFoundMsg)
	}

	// Waiting on the pool is bounded by the caller's context.
	if errors.Is(err, context.DeadlineExceeded) {
		return PoolExhausted(err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return Connectivity(err)
	}

	return Storage(err)
}
