// Package fault defines the error taxonomy shared by the namespace tree,
// the session registry and the command dispatcher.
//
// Domain failures are reported as *Error values carrying a Code. Protocol
// adapters translate a Code into a wire status; the service wraps every
// failure surfaced to a remote caller in a *Fault that carries the user and
// command line the failure belongs to.
package fault

import (
	"errors"
	"fmt"
)

// Code represents the category of a domain error.
type Code int

const (
	// ErrValidation indicates a null, empty or malformed name, path or
	// parameter. Always rejected before any mutation.
	ErrValidation Code = iota + 1

	// ErrStructural indicates a violated tree rule: wrong parent/child kind,
	// duplicate sibling name, non-empty directory, unresolved path segment.
	ErrStructural

	// ErrLockConflict indicates a double lock, the unlock of a file the user
	// does not hold, or an operation blocked by a locked descendant.
	ErrLockConflict

	// ErrAuthFailure indicates an unknown user, token mismatch or expired
	// session.
	ErrAuthFailure

	// ErrProtocol indicates an unrecognized verb or insufficient parameters.
	ErrProtocol
)

// String returns the taxonomy name of the code.
func (c Code) String() string {
	switch c {
	case ErrValidation:
		return "ValidationError"
	case ErrStructural:
		return "StructuralViolation"
	case ErrLockConflict:
		return "LockConflict"
	case ErrAuthFailure:
		return "AuthFailure"
	case ErrProtocol:
		return "ProtocolFault"
	default:
		return "Unknown"
	}
}

// Error is a domain error with a category and a human-readable message.
type Error struct {
	// Code is the error category
	Code Code

	// Message is a human-readable error description
	Message string

	// Path is the namespace path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// New creates an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPath creates an *Error that reports the path it relates to.
func WithPath(code Code, message, path string) *Error {
	return &Error{Code: code, Message: message, Path: path}
}

// CodeOf returns the Code of the first *Error in err's chain, or 0 if there
// is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Fault is the failure returned to a remote caller. It attaches the user and
// command context to the underlying error.
type Fault struct {
	UserName    string
	CommandLine string
	Err         error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.CommandLine != "" {
		return fmt.Sprintf("%s: %q: %v", f.UserName, f.CommandLine, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.UserName, f.Err)
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Message returns the message of the underlying error without user context.
func (f *Fault) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Wrap wraps err into a *Fault. A nil err yields nil.
func Wrap(userName, commandLine string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{UserName: userName, CommandLine: commandLine, Err: err}
}
