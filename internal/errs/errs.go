// Package errs defines the failure kinds shared by every pipeline stage.
// Each kind is fatal to a run; callers test for a kind with errors.Is.
package errs

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrIO marks missing, unreadable or malformed inputs and unwritable outputs.
	ErrIO = eris.New("io failure")
	// ErrAuth marks rejected credentials at a remote data store.
	ErrAuth = eris.New("authentication failure")
	// ErrInvalidState marks an operation invoked in the wrong lifecycle state.
	ErrInvalidState = eris.New("invalid state")
	// ErrPrecondition marks inputs violating a stage contract.
	ErrPrecondition = eris.New("precondition failure")
)

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.err.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.err
}

func tag(kind error, cause error, format string, args ...interface{}) error {
	var err error
	if cause == nil {
		err = eris.New(fmt.Sprintf(format, args...))
	} else {
		err = eris.Wrapf(cause, format, args...)
	}
	return &kindError{kind: kind, err: err}
}

// IO wraps cause as an io failure. cause may be nil.
func IO(cause error, format string, args ...interface{}) error {
	return tag(ErrIO, cause, format, args...)
}

// Auth wraps cause as an authentication failure. cause may be nil.
func Auth(cause error, format string, args ...interface{}) error {
	return tag(ErrAuth, cause, format, args...)
}

func InvalidState(format string, args ...interface{}) error {
	return tag(ErrInvalidState, nil, format, args...)
}

func Precondition(format string, args ...interface{}) error {
	return tag(ErrPrecondition, nil, format, args...)
}

// Kind returns the failure kind carried by err, or nil when err has none.
func Kind(err error) error {
	for _, kind := range []error{ErrIO, ErrAuth, ErrInvalidState, ErrPrecondition} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
