package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// VideoSource is an acquired camera. Once playing, a background reader
// keeps the latest decoded frame available to Frame.
type VideoSource struct {
	Constraints Constraints
	Width       int
	Height      int

	stream Stream

	mu      sync.RWMutex
	latest  gocv.Mat
	has     bool
	frames  uint64
	err     error
	playing bool
	closed  bool

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type readResult struct {
	mat gocv.Mat
	err error
}

func newVideoSource(stream Stream, c Constraints) *VideoSource {
	return &VideoSource{
		Constraints: c,
		stream:      stream,
		latest:      gocv.NewMat(),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// awaitMetadata reads the first frame to learn the frame dimensions.
func (s *VideoSource) awaitMetadata(ctx context.Context, timeout time.Duration) error {
	result := make(chan readResult, 1)
	go func() {
		m := gocv.NewMat()
		err := s.stream.Read(&m)
		result <- readResult{mat: m, err: err}
	}()

	discard := func() {
		go func() {
			r := <-result
			r.mat.Close()
		}()
	}

	select {
	case r := <-result:
		if r.err == nil && r.mat.Empty() {
			r.err = errors.New("empty frame")
		}
		if r.err != nil {
			r.mat.Close()
			return fmt.Errorf("camera: read first frame: %w", r.err)
		}
		s.mu.Lock()
		s.latest.Close()
		s.latest = r.mat
		s.has = true
		s.frames = 1
		s.Width = r.mat.Cols()
		s.Height = r.mat.Rows()
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		discard()
		return ctx.Err()
	case <-time.After(timeout):
		discard()
		return ErrMetadataTimeout
	}
}

// Play starts the background frame reader. Calling it again is a no-op.
func (s *VideoSource) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing || s.closed {
		return
	}
	s.playing = true
	go s.readLoop()
}

func (s *VideoSource) readLoop() {
	defer close(s.stopped)

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(&frame); err != nil {
			select {
			case <-s.done:
			default:
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		if frame.Empty() {
			continue
		}

		s.mu.Lock()
		frame.CopyTo(&s.latest)
		s.has = true
		s.frames++
		s.mu.Unlock()
	}
}

// Frame copies the latest decoded frame into dst. Once the reader has
// stopped on a stream error, Frame returns ErrStreamEnded wrapping it.
func (s *VideoSource) Frame(dst *gocv.Mat) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if s.err != nil {
		return fmt.Errorf("%w: %w", ErrStreamEnded, s.err)
	}
	if !s.has {
		return ErrNoFrame
	}
	s.latest.CopyTo(dst)
	return nil
}

// Frames returns how many frames have been decoded so far.
func (s *VideoSource) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Err returns the error that stopped the reader, if any.
func (s *VideoSource) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close stops the reader and releases the stream.
func (s *VideoSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.stream.Close()

		s.mu.Lock()
		playing := s.playing
		s.closed = true
		s.mu.Unlock()

		if playing {
			<-s.stopped
		}

		s.mu.Lock()
		s.latest.Close()
		s.mu.Unlock()
	})
	return err
}
