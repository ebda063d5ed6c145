package command

import (
	"errors"
	"fmt"
)

// ErrorKind classifies command failures.
type ErrorKind string

const (
	// ErrorKindParse reports a line that could not be tokenized.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindUnknown reports a name missing from the table.
	ErrorKindUnknown ErrorKind = "unknown"
	// ErrorKindArity reports an argument count outside the spec bounds.
	ErrorKindArity ErrorKind = "arity"
	// ErrorKindUsage reports arguments a handler rejected.
	ErrorKindUsage ErrorKind = "usage"
	// ErrorKindFailed reports a downstream failure inside a handler.
	ErrorKindFailed ErrorKind = "failed"
)

// Error is a command failure rendered back to the invoking channel.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Command is the invoked name when known.
	Command string
	// Message is the user-facing reply body.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("command %s %s: %s: %v", e.Command, e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("command %s %s: %s", e.Command, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// AsError extracts a command error from err.
func AsError(err error) (*Error, bool) {
	var commandErr *Error
	if errors.As(err, &commandErr) && commandErr != nil {
		return commandErr, true
	}

	return nil, false
}

// usageError builds a handler-side rejection whose message is shown verbatim.
func usageError(format string, args ...any) error {
	return &Error{Kind: ErrorKindUsage, Message: fmt.Sprintf(format, args...)}
}
