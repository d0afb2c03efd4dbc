// Package dmerror defines the error taxonomy used across the darkroom
// engine: each failure is tagged with a Kind so that callers at the Reel
// boundary can report the failing step without parsing message strings.
package dmerror

import "fmt"

// Kind names one of the failure categories from the error handling design.
type Kind string

const (
	KindRegisterParse  Kind = "RegisterParse"
	KindFrameParse     Kind = "FrameParse"
	KindReelLoad       Kind = "ReelLoad"
	KindRead           Kind = "Read"
	KindWrite          Kind = "Write"
	KindTransport      Kind = "Transport"
	KindFormMismatch   Kind = "FormMismatch"
	KindValueMismatch  Kind = "ValueMismatch"
	KindStatusMismatch Kind = "StatusMismatch"
)

// Error is the single error type for the engine. Every returned error that
// originates inside a darkroom package is either an *Error or wraps one.
type Error struct {
	Kind Kind

	// Frame identifies the offending Frame, e.g. "usr.01s.login", if known.
	Frame string

	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Frame != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Frame, e.Kind, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %s", e.Frame, e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no frame context or cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithFrame returns a copy of e annotated with the identifier of the Frame
// that was executing when the error occurred.
func (e *Error) WithFrame(frame string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Frame = frame
	return &cp
}

// KindOf returns the Kind of the first *Error found by walking err's
// Unwrap chain, or "" if err is nil or carries no darkroom Kind.
func KindOf(err error) Kind {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Is reports whether err is a darkroom *Error of the given Kind. It follows
// the Unwrap chain, matching errors.Is semantics without requiring callers
// to construct a sentinel value of Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			if de.Kind == kind {
				return true
			}
			err = de.Cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
