package tasktree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRunnable is returned when a referenced task has no unit yet.
	ErrNotRunnable = errors.New("task is not runnable")
	// ErrCapabilityNotFound is returned when no capability source knows an id.
	ErrCapabilityNotFound = errors.New("capability not found")
)

// LoadError reports a task file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load task file %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// CapabilityNotFoundError reports a parameter no capability could be
// loaded for.
type CapabilityNotFoundError struct {
	Param string
	// Tried lists every capability id attempted, in order.
	Tried []string
	// Err is the last error other than ErrCapabilityNotFound, if any.
	Err error
}

func (e *CapabilityNotFoundError) Error() string {
	msg := fmt.Sprintf(
		"could not inject capability for %s (tried: %s), did you forget to install it?",
		e.Param, strings.Join(e.Tried, ", "),
	)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CapabilityNotFoundError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCapabilityNotFound, e.Err}
	}
	return []error{ErrCapabilityNotFound}
}

// UnresolvedError reports a task whose references never became runnable.
type UnresolvedError struct {
	ID string
	// Missing lists the referenced ids that were not runnable.
	Missing []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("task %s never became runnable (waiting on: %s)", e.ID, strings.Join(e.Missing, ", "))
}

func (e *UnresolvedError) Unwrap() error {
	return ErrNotRunnable
}

// notRunnableError is raised during a compile attempt.
type notRunnableError struct {
	ref string
}

func (e *notRunnableError) Error() string {
	return fmt.Sprintf("%s: %v", e.ref, ErrNotRunnable)
}

func (e *notRunnableError) Unwrap() error {
	return ErrNotRunnable
}
