// Package apperror defines the typed error values the trade core returns.
// Callers switch on the error code, never on message text.
package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// Code identifies one failure kind.
type Code string

const (
	CodeSelfTrade          Code = "SELF_TRADE"
	CodeListingUnavailable Code = "LISTING_UNAVAILABLE"
	CodeDuplicateLine      Code = "DUPLICATE_LINE"
	CodeOwnership          Code = "OWNERSHIP"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeInvalidService     Code = "INVALID_SERVICE"
	CodeIndexOutOfRange    Code = "INDEX_OUT_OF_RANGE"
	CodeEmptyOffer         Code = "EMPTY_OFFER"
	CodeNotAuthorized      Code = "NOT_AUTHORIZED"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeInvalidCode        Code = "INVALID_CODE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeStorage            Code = "STORAGE"
)

// Error is a typed error value with an optional wrapped cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a typed error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Storage wraps an unexpected persistence failure. The core surfaces these
// uniformly and never retries on the caller's behalf.
func Storage(cause error) *Error {
	return &Error{Code: CodeStorage, Message: "storage operation failed", cause: cause}
}

// CodeOf extracts the code from err, or CodeStorage when err is not a typed
// error (unknown failures are treated as storage-level).
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeStorage
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus maps an error to the status the API layer should answer with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeNotAuthorized, CodeOwnership:
		return fiber.StatusForbidden
	case CodeListingUnavailable, CodeInvalidState:
		return fiber.StatusConflict
	case CodeSelfTrade, CodeDuplicateLine, CodeInvalidAmount,
		CodeInvalidService, CodeIndexOutOfRange, CodeEmptyOffer, CodeInvalidCode,
		CodeInvalidInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
