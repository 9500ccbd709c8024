package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a log error.
type ErrorKind int

const (
	// KindIO marks OS-level failures: open, read, write, seek, truncate,
	// rename, lock.
	KindIO ErrorKind = iota
	// KindSyntax marks invalid data: malformed headers, digest mismatches,
	// unexpected value shapes. Not transient.
	KindSyntax
	// KindInternal marks programmer misuse of the API, such as reading a
	// log that is in write mode.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindSyntax:
		return "syntax error"
	case KindInternal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by log operations. A *Error is cheap
// to duplicate with Clone, which lets a handle latch a read error once
// and replay it on every subsequent read.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Clone returns a copy of e that callers may hold independently of the
// original. A nil receiver clones to nil.
func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// IOErrorf creates a KindIO error wrapping cause.
func IOErrorf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindIO, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// SyntaxErrorf creates a KindSyntax error.
func SyntaxErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Msg: fmt.Sprintf(format, args...)}
}

// Bugf creates a KindInternal error. It reports misuse of the package,
// not a runtime fault.
func Bugf(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...)}
}

// IsIO reports whether err (or any error in its chain) is a KindIO *Error.
func IsIO(err error) bool {
	return isKind(err, KindIO)
}

// IsSyntax reports whether err is a KindSyntax *Error.
func IsSyntax(err error) bool {
	return isKind(err, KindSyntax)
}

// IsBug reports whether err is a KindInternal *Error.
func IsBug(err error) bool {
	return isKind(err, KindInternal)
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
