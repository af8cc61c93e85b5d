package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	// KindValidation covers templates that cannot be rendered: missing HTML or CSS,
	// unusable dimensions.
	KindValidation ErrorKind = "validation"
	// KindDecode covers images that cannot be read.
	KindDecode ErrorKind = "decode"
	// KindFormula covers unsafe or malformed formulas. Never surfaced to users.
	KindFormula ErrorKind = "formula"
	// KindPersistence covers backend writes, uploads and deletes.
	KindPersistence ErrorKind = "persistence"
	// KindExport covers capture and rasterization failures.
	KindExport ErrorKind = "export"
)

// ErrCaptureTargetMissing is returned by rasterizers when the capture root is absent.
var ErrCaptureTargetMissing = errors.New("capture target not found")

// Error is a classified pipeline error.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error around an existing cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
