package cli

import "fmt"

// ConfigError reports an invalid or unloadable configuration. Field is
// the dotted YAML path, or empty when the file as a whole failed.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError wraps the failure of a CLI command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

// Unwrap exposes the cause to errors.Is, so callers can match
// store.ErrNotFound or the snapshot sentinels.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError reports message against the YAML path field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError wraps err as the failure of command ("ingest",
// "snapshot import", ...).
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}
