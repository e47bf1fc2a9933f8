package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the synchronous failure paths.
var (
	// ErrAlreadyRunning rejects a start while a run is active (no queueing).
	ErrAlreadyRunning = errors.New("test already running")

	// ErrNoValidSession rejects privileged execution without a verified,
	// unexpired credential session.
	ErrNoValidSession = errors.New("no valid sudo session")

	// ErrCommandTimeout reports a bounded wait that was exceeded.
	ErrCommandTimeout = errors.New("command timed out")
)

// InvalidParamsError reports a caller error in a start request. No state
// changes when it is returned.
type InvalidParamsError struct {
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return "invalid parameters: " + e.Reason
}

// InvalidParams builds an InvalidParamsError from a format string.
func InvalidParams(format string, args ...any) error {
	return &InvalidParamsError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidParams reports whether err is a parameter validation failure.
func IsInvalidParams(err error) bool {
	var ipe *InvalidParamsError
	return errors.As(err, &ipe)
}

// LaunchError wraps an OS-level subprocess creation failure (missing binary,
// permission). The runner rolls back to idle, so the tool stays retryable.
type LaunchError struct {
	Tool Tool
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Tool, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// CommandError reports a privileged command that ran but exited non-zero.
type CommandError struct {
	Stderr string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return "command failed"
	}
	return "command failed: " + e.Stderr
}
