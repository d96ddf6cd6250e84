package agent

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError reports an inconsistency between the shapes or
// values that components were configured with, e.g. an approximator
// whose number of outputs differs from the number of environment
// actions, or a batch whose fields have different lengths.
type ConfigurationError struct {
	Op  string
	Err error
}

// NewConfigurationError returns a new ConfigurationError for operation
// op with a formatted message.
func NewConfigurationError(op, format string, args ...interface{}) error {
	return &ConfigurationError{Op: op, Err: fmt.Errorf(format, args...)}
}

// Error satisfies the error interface
func (c *ConfigurationError) Error() string {
	return c.Op + ": " + c.Err.Error()
}

// Unwrap returns the underlying cause
func (c *ConfigurationError) Unwrap() error {
	return c.Err
}

// IsConfigurationError returns whether err, or any error it wraps, is
// a ConfigurationError.
func IsConfigurationError(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}
