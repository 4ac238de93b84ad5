package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for the frame loop.
var (
	// ErrUnrecognizedConfiguration marks an unknown algorithm, estimate,
	// effect, or color scale. It only skips work for a tick.
	ErrUnrecognizedConfiguration = errors.New("pipeline: unrecognized configuration")

	// ErrInvalidState is returned when an operation does not apply to the
	// loop's current state.
	ErrInvalidState = errors.New("pipeline: invalid state")

	// ErrInvalidConfig is returned by NewLoop for out-of-range values.
	ErrInvalidConfig = errors.New("pipeline: invalid config")
)

// ConfigError names the configuration field holding an unknown value. It
// matches ErrUnrecognizedConfiguration with errors.Is.
type ConfigError struct {
	Field string
	Value string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline: unrecognized %s %q", e.Field, e.Value)
}

// Is reports whether target is ErrUnrecognizedConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrUnrecognizedConfiguration
}

// StateError reports an operation attempted in the wrong state.
type StateError struct {
	Op    string
	State State
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("pipeline: %s not allowed in state %s", e.Op, e.State)
}

// Unwrap returns ErrInvalidState.
func (e *StateError) Unwrap() error {
	return ErrInvalidState
}
