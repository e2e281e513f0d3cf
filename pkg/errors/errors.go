// Package errors defines the coded errors shared by every sheetblocks
// package.
//
// An [Error] carries a [Code] for programs (the HTTP API maps it to a
// status) and a Message for people (the CLI and API print it verbatim).
// The layout engine itself only fails in four ways:
//
//	INVALID_INPUT    empty grid, bad block index, bad identifier
//	DUPLICATE_NAME   a template display name is already taken
//	LAYOUT_MISMATCH  a merge was attempted on incompatible layouts
//	NOT_FOUND        a file, layout or template does not exist
//
// The remaining codes belong to the glue around it: unreadable uploads and
// records (INVALID_FORMAT), unsafe storage keys (INVALID_PATH), storage
// engine failures (STORAGE), disabled features (UNSUPPORTED) and bugs
// (INTERNAL_ERROR).
//
// Errors compose with the standard library:
//
//	err := errors.Wrap(errors.ErrCodeStorage, ioErr, "write %s", key)
//	errors.Is(err, errors.ErrCodeStorage) // true
//	stderrors.Is(err, ioErr)              // true
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeDuplicateName  Code = "DUPLICATE_NAME"
	ErrCodeLayoutMismatch Code = "LAYOUT_MISMATCH"
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeStorage        Code = "STORAGE"
	ErrCodeInternal       Code = "INTERNAL_ERROR"
	ErrCodeUnsupported    Code = "UNSUPPORTED"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with a formatted message that wraps cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any *Error in err's chain has code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode returns the code of the outermost *Error in err's chain, or ""
// when there is none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of the outermost *Error, without code
// or cause, falling back to err.Error().
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// NotFound is New(ErrCodeNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return New(ErrCodeNotFound, format, args...)
}

// InvalidInput is New(ErrCodeInvalidInput, ...).
func InvalidInput(format string, args ...any) *Error {
	return New(ErrCodeInvalidInput, format, args...)
}
