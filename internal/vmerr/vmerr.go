// Package vmerr defines the uniform error taxonomy used throughout the
// interpreter. Every fallible operation in memory, ztext, zobject, zdecode,
// zframe, zdict, and zpersist returns a *vmerr.Error (or wraps one), so
// callers can branch on failure kind with errors.Is/errors.As instead of
// string-matching messages.
package vmerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure.
type Kind int

const (
	// OutOfBounds is any read past the addressable image.
	OutOfBounds Kind = iota
	// ReadOnlyRegion is a write attempted in static or high memory.
	ReadOnlyRegion
	// InvalidOpcode is a (form, opcode, version) triple with no defined meaning.
	InvalidOpcode
	// InvalidOperandCount is operand kinds decoding to a count the opcode disallows.
	InvalidOperandCount
	// EmptyStack is a pop (read_variable(0), peek, or return) against an empty eval stack.
	EmptyStack
	// StackOverflow is a push exceeding the configured per-frame or total stack depth.
	StackOverflow
	// NoSuchLocal is a local-variable index beyond the current routine's local count.
	NoSuchLocal
	// NoSuchObject is an object number with no corresponding entry in the object table.
	NoSuchObject
	// NoSuchProperty is a property access against a number not present on the object.
	NoSuchProperty
	// InvalidString is malformed packed-string data, such as a non-terminating word sequence.
	InvalidString
	// IncompatibleSave is a persisted blob that does not match the loaded story.
	IncompatibleSave
)

func (k Kind) String() string {
	switch k {
	case OutOfBounds:
		return "OutOfBounds"
	case ReadOnlyRegion:
		return "ReadOnlyRegion"
	case InvalidOpcode:
		return "InvalidOpcode"
	case InvalidOperandCount:
		return "InvalidOperandCount"
	case EmptyStack:
		return "EmptyStack"
	case StackOverflow:
		return "StackOverflow"
	case NoSuchLocal:
		return "NoSuchLocal"
	case NoSuchObject:
		return "NoSuchObject"
	case NoSuchProperty:
		return "NoSuchProperty"
	case InvalidString:
		return "InvalidString"
	case IncompatibleSave:
		return "IncompatibleSave"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind alongside the usual
// message and optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Kind, so that
// errors.Is(err, vmerr.New(vmerr.OutOfBounds, "")) matches any OutOfBounds
// error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind that wraps an underlying cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is, or wraps, a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
