package cli

import "fmt"

// ConfigError reports an invalid or unloadable configuration value. Field is
// the dotted config path when the failure is attributable to one.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error at %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError. An empty field means the failure
// spans the whole config rather than a single value.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// CommandError wraps a failure from one of the gateway's subcommands so the
// top-level error output names which command failed.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err with the failing command's name.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}
