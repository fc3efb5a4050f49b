package model

import "fmt"

// ExitCode defines standard CLI exit codes.
// These codes allow scripts and CI systems to programmatically determine
// the outcome of a command. When the container runtime itself fails, its
// exit code is propagated instead (see RuntimeExitError).
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigInvalid indicates the launch profile could not be loaded
	// or produced an invalid launch spec.
	ExitConfigInvalid ExitCode = 2

	// ExitRuntimeUnavailable indicates the container runtime (binary or
	// daemon) is not accessible.
	ExitRuntimeUnavailable ExitCode = 3

	// ExitImportFailed indicates the dictionary import stopped on an error.
	ExitImportFailed ExitCode = 4

	// ExitDatabaseUnavailable indicates the graph database could not be reached.
	ExitDatabaseUnavailable ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
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

// RuntimeExitError reports that the container runtime ran and exited with
// a non-zero status. The runtime has already written its own diagnostic to
// stderr, so the CLI layer exits with Code and prints nothing further.
type RuntimeExitError struct {
	// Runtime is the runtime binary that was invoked (e.g., "docker").
	Runtime string

	// Code is the runtime's exit status.
	Code int

	// Stderr holds the runtime's diagnostic output, as captured while it
	// was streamed through. Used only for --json output.
	Stderr string

	// Err is the underlying *exec.ExitError.
	Err error
}

// Error satisfies the error interface.
func (e *RuntimeExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Runtime, e.Code)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *RuntimeExitError) Unwrap() error {
	return e.Err
}
