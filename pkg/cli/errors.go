package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK = 0

	// ExitFailure reports a negative outcome: an invalid definition, a
	// failing test case, or a runtime error.
	ExitFailure = 1

	// ExitUsage reports bad flags, arguments, or configuration.
	ExitUsage = 2
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Path    string
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	where := e.Field
	if e.Path != "" {
		where = e.Path
		if e.Field != "" {
			where += ": " + e.Field
		}
	}
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	return fmt.Sprintf("config error in %s: %s", where, msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error

	// Code is the process exit code. Zero selects ExitFailure.
	Code int

	// Reported marks errors whose details the command already printed.
	Reported bool
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(path, field, message string, err error) *ConfigError {
	return &ConfigError{Path: path, Field: field, Message: message, Err: err}
}

// NewCommandError creates a new CommandError exiting with ExitFailure.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err, Code: ExitFailure}
}

// NewUsageError creates a CommandError exiting with ExitUsage.
func NewUsageError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err, Code: ExitUsage}
}

// Reported wraps a failure whose details were already written to the
// output, so that main only sets the exit code.
func Reported(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err, Code: ExitFailure, Reported: true}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitUsage
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != 0 {
		return cmdErr.Code
	}
	return ExitFailure
}

// IsReported reports whether err was already printed by the command.
func IsReported(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.Reported
}
