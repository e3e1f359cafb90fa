// Package wfault classifies workflow failures and maps them to process
// exit codes. Every fatal error raised by the vmshift workflows wraps
// exactly one Kind; the CLI catches the error once, prints it, and exits
// with the code belonging to that kind.
package wfault

import (
	"errors"
	"fmt"
)

// Kind is a class of workflow failure.
type Kind int

const (
	// KindGeneric - unspecified failure.
	KindGeneric Kind = iota

	// KindPrecondition - a required precondition did not hold: missing
	// elevation, missing vendor module, VM or file not found.
	KindPrecondition

	// KindSelectionExhausted - no eligible snapshot or backup record exists.
	KindSelectionExhausted

	// KindExternalCommand - a vendor cmdlet or CLI reported an error; the
	// vendor message is surfaced to the operator verbatim.
	KindExternalCommand
)

// ExitCode returns the process exit code for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindPrecondition:
		return 2
	case KindSelectionExhausted:
		return 3
	case KindExternalCommand:
		return 4
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition failed"
	case KindSelectionExhausted:
		return "selection exhausted"
	case KindExternalCommand:
		return "external command failed"
	default:
		return "error"
	}
}

// Fault is an error carrying a failure kind.
type Fault struct {
	Kind Kind
	Err  error
}

func (f *Fault) Error() string {
	return f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// New creates a fault of the given kind from a format string.
func New(kind Kind, format string, a ...interface{}) error {
	return &Fault{Kind: kind, Err: fmt.Errorf(format, a...)}
}

// Wrap attaches a kind to an existing error. A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: kind, Err: err}
}

// KindOf reports the kind carried by err, or KindGeneric if none.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindGeneric
}

// ExitCodeOf returns the exit code for err. A nil error is success.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
