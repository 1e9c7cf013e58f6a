package model

import "fmt"

// ExitCode defines the process exit codes of the unused-port command.
// Scripts and CI jobs can branch on them without parsing stderr.
type ExitCode int

const (
	// ExitSuccess indicates the server ran and was shut down cleanly.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidDirectory indicates the directory to serve does not exist
	// or is not a directory.
	ExitInvalidDirectory ExitCode = 2

	// ExitInterpreterNotFound indicates no Python interpreter was found.
	ExitInterpreterNotFound ExitCode = 3

	// ExitPortAllocationFailed indicates the OS refused the ephemeral bind.
	ExitPortAllocationFailed ExitCode = 4

	// ExitServerStartFailed indicates the static server child exited
	// during startup.
	ExitServerStartFailed ExitCode = 5

	// ExitConfigError indicates the configuration file could not be read
	// or parsed.
	ExitConfigError ExitCode = 6
)

// String returns a short name for the exit code, used in JSON error output.
func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitGeneralError:
		return "general-error"
	case ExitInvalidDirectory:
		return "invalid-directory"
	case ExitInterpreterNotFound:
		return "interpreter-not-found"
	case ExitPortAllocationFailed:
		return "port-allocation-failed"
	case ExitServerStartFailed:
		return "server-start-failed"
	case ExitConfigError:
		return "config-error"
	default:
		return fmt.Sprintf("exit-%d", int(c))
	}
}

// CLIError is an error that carries the exit code the CLI should return.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the message, followed by
// the underlying error when there is one.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
