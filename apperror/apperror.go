// Package apperror defines the error codes shared by every stage of a pipeline run.
package apperror

import (
	"errors"
	"fmt"
)

type Code string

const (
	InvalidIdentifier   Code = "INVALID_IDENTIFIER"
	ProviderError       Code = "PROVIDER_ERROR"
	AuthenticationError Code = "AUTHENTICATION_ERROR"
	StorageIOError      Code = "STORAGE_IO_ERROR"
	DataUnavailable     Code = "DATA_UNAVAILABLE"
	UnsupportedTarget   Code = "UNSUPPORTED_TARGET"
)

// Error is a coded error. The cause, if any, is reachable through errors.Unwrap.
type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Unwrap() error   { return e.cause }

// CodeOf returns the code of the outermost *Error in err's chain, or "" if there is none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
