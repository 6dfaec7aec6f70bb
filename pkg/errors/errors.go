package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur during a run
type ErrorType string

const (
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeClientError    ErrorType = "client_error"
	ErrorTypeDecode         ErrorType = "decode"
	ErrorTypeMissingPayload ErrorType = "missing_payload"
	ErrorTypeOutput         ErrorType = "output"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error is a classified failure. Op names the operation that failed
// ("search", "write full record", ...), Code carries the HTTP status when
// there is one.
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s error (code %d): %s", e.Op, e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without an underlying cause
func New(errType ErrorType, op, message string) *Error {
	return &Error{Type: errType, Op: op, Message: message}
}

// Wrap classifies an underlying error
func Wrap(errType ErrorType, op string, err error) *Error {
	return &Error{Type: errType, Op: op, Err: err}
}

// Network wraps a connection, timeout or body read failure
func Network(op string, err error) *Error {
	return Wrap(ErrorTypeNetwork, op, err)
}

// Decode wraps a response body that does not match the expected shape
func Decode(op string, code int, err error) *Error {
	return &Error{Type: ErrorTypeDecode, Op: op, Code: code, Err: err}
}

// MissingPayload reports that a response lacked a field it was expected to carry
func MissingPayload(op, field string) *Error {
	return New(ErrorTypeMissingPayload, op, fmt.Sprintf("response has no %q object", field))
}

// Output wraps a failure to create, open or write an output stream
func Output(op string, err error) *Error {
	return Wrap(ErrorTypeOutput, op, err)
}

// FromStatus classifies a non-2xx HTTP status
func FromStatus(op string, code int, message string) *Error {
	return &Error{Type: TypeForStatus(code), Op: op, Code: code, Message: message}
}

// TypeForStatus maps an HTTP status code to an error type
func TypeForStatus(code int) ErrorType {
	switch {
	case code == 401 || code == 403:
		return ErrorTypeAuth
	case code == 404:
		return ErrorTypeNotFound
	case code == 429:
		return ErrorTypeRateLimit
	case code >= 500:
		return ErrorTypeServerError
	case code >= 400:
		return ErrorTypeClientError
	default:
		return ErrorTypeUnknown
	}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given error type
func Is(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}
