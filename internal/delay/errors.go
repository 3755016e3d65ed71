package delay

import (
	"errors"
	"fmt"
)

// Kind classifies a failed invocation.
type Kind int

const (
	InvalidArgument Kind = iota + 1
	UnknownDataset
	DivisionByZero
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case UnknownDataset:
		return "UnknownDataset"
	case DivisionByZero:
		return "DivisionByZero"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Exit codes returned by the CLI. Generic failures (config, storage) use ExitFailure.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitInvalidArgument = 2
	ExitUnknownDataset  = 3
	ExitDivisionByZero  = 4
)

// ExitCode returns the process status for this kind.
func (k Kind) ExitCode() int {
	switch k {
	case InvalidArgument:
		return ExitInvalidArgument
	case UnknownDataset:
		return ExitUnknownDataset
	case DivisionByZero:
		return ExitDivisionByZero
	default:
		return ExitFailure
	}
}

// Error is returned for every rejected invocation.
type Error struct {
	Kind  Kind
	Arg   string // argument name, e.g. "thread_count"
	Value string
	Err   error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case InvalidArgument:
		switch {
		case e.Value != "":
			msg = fmt.Sprintf("invalid %s %q", e.Arg, e.Value)
		case e.Err != nil:
			msg = fmt.Sprintf("invalid %s", e.Arg)
		default:
			msg = fmt.Sprintf("missing %s argument", e.Arg)
		}
	case UnknownDataset:
		msg = fmt.Sprintf("unknown %s %q", e.Arg, e.Value)
	case DivisionByZero:
		msg = fmt.Sprintf("%s must not be zero", e.Arg)
	default:
		msg = fmt.Sprintf("%s: %s %q", e.Kind, e.Arg, e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, &delay.Error{Kind: delay.UnknownDataset}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf reports the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if k := KindOf(err); k != 0 {
		return k.ExitCode()
	}
	return ExitFailure
}

func invalidArgument(arg, value string, err error) error {
	return &Error{Kind: InvalidArgument, Arg: arg, Value: value, Err: err}
}
