// Package xperr defines the error taxonomy shared by the codecs, the scene
// exporters and the bake pipeline.
package xperr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Test with errors.Is(err, xperr.ErrFormat).
var (
	ErrIO        = stderrors.New("io error")
	ErrFormat    = stderrors.New("format error")
	ErrReference = stderrors.New("reference error")
	ErrInvariant = stderrors.New("invariant error")
	ErrHost      = stderrors.New("host error")
)

// Error is a classified failure. Line is the 1-based source line for
// format errors and 0 otherwise.
type Error struct {
	Kind  error
	Line  int
	Msg   string
	cause error
}

func (e *Error) Error() string {
	prefix := e.Kind.Error()
	if e.Line > 0 {
		prefix = fmt.Sprintf("%s (line %d)", prefix, e.Line)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Cause implements the pkg/errors causer interface.
func (e *Error) Cause() error {
	return e.cause
}

func newError(kind, cause error, format string, args ...interface{}) error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// IO wraps a filesystem failure.
func IO(cause error, format string, args ...interface{}) error {
	return newError(ErrIO, cause, format, args...)
}

// Format reports a malformed command at the given line.
func Format(line int, format string, args ...interface{}) error {
	return &Error{Kind: ErrFormat, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Reference reports a missing texture, collection or child mesh.
func Reference(format string, args ...interface{}) error {
	return newError(ErrReference, nil, format, args...)
}

// Invariant reports a violated structural constraint.
func Invariant(format string, args ...interface{}) error {
	return newError(ErrInvariant, nil, format, args...)
}

// Host wraps a failed host call such as bake or mesh evaluation.
func Host(cause error, format string, args ...interface{}) error {
	return newError(ErrHost, cause, format, args...)
}

// KindOf returns the kind sentinel of err, or nil when err is unclassified.
func KindOf(err error) error {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return nil
}
