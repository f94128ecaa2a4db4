package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure for callers. Every error that leaves the
// pipeline carries exactly one kind.
type Kind string

const (
	KindValidation Kind = "validation"
	KindProvider   Kind = "provider"
	KindConversion Kind = "conversion"
	KindAnimation  Kind = "animation"
	KindRender     Kind = "render"
	KindResource   Kind = "resource"
	KindCancelled  Kind = "cancelled"
	KindInternal   Kind = "internal"
)

// Error is the structured error returned by the core packages.
type Error struct {
	Kind    Kind   // failure class
	Op      string // operation or stage that failed
	Message string // human readable description
	Err     error  // underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " [" + e.Op + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so errors.Is(err, &Error{Kind: KindRender}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation is shorthand for a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return Errorf(KindValidation, op, format, args...)
}

// KindOf reports the kind of err. Context cancellation maps to KindCancelled,
// anything unclassified maps to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindInternal
}

// AsError converts any error into *Error, keeping an existing classification.
func AsError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}
