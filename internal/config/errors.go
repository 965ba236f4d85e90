package config

import "fmt"

// PermissionError reports a config file the advisor cannot read or write.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string // shell command that restores access
	Details string
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("cannot %s advisor config %s: permission denied\n", e.Op, e.Path)
	if e.Details != "" {
		msg += e.Details + "\n"
	}
	msg += "💡 Try: " + e.Fix
	return msg
}

// ConfigNotFoundError is returned by LoadFrom when the file does not exist.
// LoadOrDefault treats it as "use defaults".
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("no advisor config at %s\n💡 %s", e.Path, e.Hint)
}

// InvalidConfigError wraps a parse or validation failure.
type InvalidConfigError struct {
	Path string
	Err  error
	Hint string
}

func (e *InvalidConfigError) Error() string {
	msg := "invalid config " + e.Path
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += "\n💡 " + e.Hint
	}
	return msg
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }
