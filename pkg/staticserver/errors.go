package staticserver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyRunning is returned by Start when the handle already owns a
	// child process. The handle is left untouched.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrInterpreterNotFound is returned by Start when no Python interpreter
	// could be located.
	ErrInterpreterNotFound = errors.New("python interpreter not found")
)

// StartupError reports a child process that exited before the startup check.
// Output holds everything the child wrote to stdout and stderr.
type StartupError struct {
	// Output is the captured diagnostic output of the child.
	Output string

	// Err is the exit error from the child, if any.
	Err error
}

// Error satisfies the error interface.
func (e *StartupError) Error() string {
	msg := "server failed to start"
	if out := strings.TrimSpace(e.Output); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, out)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying exit error for errors.Is/errors.As.
func (e *StartupError) Unwrap() error {
	return e.Err
}
