package file

import "errors"

// Error is a contract violation: the caller asked for something the file
// model forbids (changing a file type, writing a malformed payload, ...).
//
// Contract violations are never retried or coerced. They indicate a caller
// bug or corrupted data and propagate to the immediate caller.
type Error struct {
	// Code is the violation category
	Code ErrorCode

	// Message is a human-readable description
	Message string

	// Path is the physical path involved, if any
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Is matches errors of the same code, so errors.Is(err, &Error{Code: c})
// works regardless of message and path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode is the category of a contract violation.
type ErrorCode int

const (
	// ErrTypeMismatch: writing a type different from the recorded one
	ErrTypeMismatch ErrorCode = iota + 1

	// ErrAddressMismatch: a meta record carries a different address
	ErrAddressMismatch

	// ErrInvalidData: payload shape does not match its type
	ErrInvalidData

	// ErrInvalidType: unknown file type
	ErrInvalidType

	// ErrCorruptMeta: a sidecar could not be decoded
	ErrCorruptMeta

	// ErrInvalidPath: the address escapes its document
	ErrInvalidPath
)

func (c ErrorCode) String() string {
	switch c {
	case ErrTypeMismatch:
		return "type mismatch"
	case ErrAddressMismatch:
		return "address mismatch"
	case ErrInvalidData:
		return "invalid data"
	case ErrInvalidType:
		return "invalid type"
	case ErrCorruptMeta:
		return "corrupt meta"
	case ErrInvalidPath:
		return "invalid path"
	default:
		return "unknown"
	}
}

// NewError builds a contract violation.
func NewError(code ErrorCode, message, path string) *Error {
	return &Error{Code: code, Message: message, Path: path}
}

// IsContractViolation reports whether err wraps an *Error.
func IsContractViolation(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// CodeOf returns the violation code carried by err, or 0.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
