package errors

import (
	"errors"
	"fmt"
)

// Error codes used across the client.
const (
	CodeValidation           = "validation"
	CodeTransport            = "transport"
	CodeEmptyResult          = "empty_result"
	CodeProxyContentMismatch = "proxy_content_mismatch"
)

// Common errors
var (
	ErrValidation           = errors.New("validation error")
	ErrTransport            = errors.New("transport error")
	ErrEmptyResult          = errors.New("no media found")
	ErrProxyContentMismatch = errors.New("unexpected proxy content type")

	ErrAlreadyDownloading = errors.New("download already in progress for this url")
	ErrNothingToDownload  = errors.New("nothing to download")
	ErrBulkInFlight       = errors.New("a bulk download is already in progress")
	ErrStale              = errors.New("result superseded by a newer request")
	ErrSuperseded         = errors.New("probe superseded by a newer probe")
)

var codeSentinels = map[string]error{
	CodeValidation:           ErrValidation,
	CodeTransport:            ErrTransport,
	CodeEmptyResult:          ErrEmptyResult,
	CodeProxyContentMismatch: ErrProxyContentMismatch,
}

// Error represents a custom error type
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that belongs to the error's code, so
// errors.Is(err, ErrTransport) holds for any transport-coded error.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// New creates a new error with a message
func New(message string) error {
	return &Error{
		Message: message,
	}
}

// NewWithCode creates a coded error without a cause.
func NewWithCode(code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapWithCode wraps an error with a code and message
func WrapWithCode(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation builds a validation error with a user-facing message.
func Validation(message string) error {
	return NewWithCode(CodeValidation, message)
}

// EmptyResult builds an empty-result error with a user-facing message.
func EmptyResult(message string) error {
	return NewWithCode(CodeEmptyResult, message)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode returns the error code if it exists
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetMessage returns the error message
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

func IsEmptyResult(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}

func IsProxyContentMismatch(err error) bool {
	return errors.Is(err, ErrProxyContentMismatch)
}
