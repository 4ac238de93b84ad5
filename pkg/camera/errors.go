package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for camera resolution.
var (
	// ErrCapabilityUnavailable is returned when the platform cannot acquire
	// media streams at all. It is fatal and must not be retried.
	ErrCapabilityUnavailable = errors.New("camera: media acquisition not available")

	// ErrNoFrame is returned when no frame has been decoded yet.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrClosed is returned when reading from a closed source.
	ErrClosed = errors.New("camera: source closed")

	// ErrStreamEnded is returned by Frame once the reader has stopped on a
	// stream error. It wraps the stream's own error.
	ErrStreamEnded = errors.New("camera: stream ended")

	// ErrMetadataTimeout is returned when the first frame does not arrive in time.
	ErrMetadataTimeout = errors.New("camera: timed out waiting for video metadata")

	// ErrNoVideoTrack is returned when an acquired stream carries no video.
	ErrNoVideoTrack = errors.New("camera: stream has no video track")
)

// OverconstrainedError reports that no device satisfies a required constraint.
type OverconstrainedError struct {
	Constraint string
	Value      string
}

// Error implements the error interface.
func (e *OverconstrainedError) Error() string {
	return fmt.Sprintf("camera: no device satisfies %s=%q", e.Constraint, e.Value)
}
