package camera

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCV acquires cameras, video files, or stream URLs through
// gocv.VideoCapture. It cannot enumerate devices; the device id is a
// camera index ("0"), a file path, or a URL.
type OpenCV struct{}

// GetUserMedia opens a capture device. An empty device id opens camera 0.
func (OpenCV) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	device := c.DeviceID
	if device == "" {
		device = "0"
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("camera: open capture %q: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &OverconstrainedError{Constraint: "deviceId", Value: device}
	}

	if c.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	}
	if c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}
	if c.FrameRate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(c.FrameRate))
	}

	return &captureStream{vc: vc}, nil
}

type captureStream struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	closed bool
}

func (s *captureStream) Read(dst *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if ok := s.vc.Read(dst); !ok {
		return io.EOF
	}
	return nil
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.vc.Close()
}
