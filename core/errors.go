package core

import "fmt"

// ConfigurationError reports invalid setup-time configuration (a bad
// session config, budget spec, or task graph). It is fatal: validation
// happens before any task starts, so no events exist for a run that
// failed configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
