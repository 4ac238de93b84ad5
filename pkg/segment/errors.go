package segment

import (
	"errors"
	"fmt"
)

// Sentinel errors for inference.
var (
	// ErrEngineLoad is returned when a model cannot be loaded. It is fatal
	// for the frame loop.
	ErrEngineLoad = errors.New("segment: engine load failed")

	// ErrEmptyFrame is returned when inference is asked to run on an empty frame.
	ErrEmptyFrame = errors.New("segment: empty frame")

	// ErrEngineClosed is returned when using an engine after Close.
	ErrEngineClosed = errors.New("segment: engine closed")

	// ErrInvalidResolution is returned for an unknown internal resolution.
	ErrInvalidResolution = errors.New("segment: invalid internal resolution")
)

// LoadError describes which model failed to load. It matches ErrEngineLoad
// with errors.Is.
type LoadError struct {
	Model string
	Err   error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("segment: load %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEngineLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrEngineLoad
}
