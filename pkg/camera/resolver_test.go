package camera

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

const (
	desktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"
)

type fakeEnumerator struct {
	devices []DeviceInfo
	err     error
	calls   int
}

func (f *fakeEnumerator) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	f.calls++
	return f.devices, f.err
}

type fakeStream struct {
	mu     sync.Mutex
	width  int
	height int
	reads  int
	limit  int // 0 means unlimited
	block  chan struct{}
	closed bool
}

func (s *fakeStream) Read(dst *gocv.Mat) error {
	if s.block != nil {
		<-s.block
		return io.EOF
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.limit > 0 && s.reads >= s.limit {
		return io.EOF
	}
	s.reads++
	m := gocv.NewMatWithSize(s.height, s.width, gocv.MatTypeCV8UC3)
	defer m.Close()
	m.CopyTo(dst)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.block != nil {
		close(s.block)
	}
	s.closed = true
	return nil
}

type fakeAcquirer struct {
	stream *fakeStream
	err    error
	got    []Constraints
}

func (f *fakeAcquirer) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	f.got = append(f.got, c)
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func cameras() *fakeEnumerator {
	return &fakeEnumerator{devices: []DeviceInfo{
		{Kind: KindAudioInput, Label: "Built-in Microphone", DeviceID: "mic"},
		{Kind: KindVideoInput, Label: "Front Camera", DeviceID: "front-id"},
		{Kind: KindVideoInput, Label: "Back Camera", DeviceID: "back-id"},
		{Kind: KindVideoInput, Label: "Back Camera 2", DeviceID: "back2-id"},
	}}
}

func TestConstraints(t *testing.T) {
	tests := []struct {
		name      string
		ua        string
		label     string
		wantID    string
		wantMode  FacingMode
		wantExact bool
	}{
		{"desktop no label", desktopUA, "", "", "", false},
		{"desktop front", desktopUA, "Front Camera", "front-id", "", false},
		{"desktop back exact match", desktopUA, "Back Camera", "back-id", "", false},
		{"desktop partial label", desktopUA, "Front", "", "", false},
		{"desktop unknown label", desktopUA, "Studio", "", "", false},
		{"desktop case sensitive", desktopUA, "front camera", "", "", false},
		{"mobile no label", androidUA, "", "", FacingUser, false},
		{"mobile back", androidUA, "Back Camera", "back-id", FacingEnvironment, true},
		{"mobile front", iphoneUA, "Front Camera", "front-id", FacingUser, false},
		{"mobile unknown label", iphoneUA, "Studio", "", FacingUser, false},
		{"mobile lowercase back", iphoneUA, "back", "", FacingEnvironment, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(cameras(), nil, WithUserAgent(tc.ua))
			c := r.Constraints(context.Background(), tc.label)

			if c.DeviceID != tc.wantID {
				t.Errorf("DeviceID = %q, want %q", c.DeviceID, tc.wantID)
			}
			if c.FacingMode != tc.wantMode {
				t.Errorf("FacingMode = %q, want %q", c.FacingMode, tc.wantMode)
			}
			if c.FacingExact != tc.wantExact {
				t.Errorf("FacingExact = %v, want %v", c.FacingExact, tc.wantExact)
			}
		})
	}
}

func TestConstraints_NoEnumerator(t *testing.T) {
	r := NewResolver(nil, nil, WithUserAgent(desktopUA))
	c := r.Constraints(context.Background(), "Front Camera")
	if c.DeviceID != "" || c.FacingMode != "" {
		t.Errorf("got %+v, want unconstrained", c)
	}
}

func TestConstraints_EnumerationError(t *testing.T) {
	enum := &fakeEnumerator{err: errors.New("permission denied")}
	r := NewResolver(enum, nil, WithUserAgent(desktopUA))
	c := r.Constraints(context.Background(), "Front Camera")
	if c.DeviceID != "" {
		t.Errorf("DeviceID = %q, want empty", c.DeviceID)
	}
	if enum.calls != 1 {
		t.Errorf("calls = %d, want 1", enum.calls)
	}
}

func TestConstraints_CaptureSize(t *testing.T) {
	r := NewResolver(nil, nil, WithUserAgent(desktopUA), WithCapture(HD720Config()))
	c := r.Constraints(context.Background(), "")
	if c.Width != 1280 || c.Height != 720 || c.FrameRate != 30 {
		t.Errorf("got %dx%d@%d, want 1280x720@30", c.Width, c.Height, c.FrameRate)
	}
}

func TestResolve_NoCapability(t *testing.T) {
	r := NewResolver(cameras(), nil)
	_, err := r.Resolve(context.Background(), "")
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Errorf("err = %v, want ErrCapabilityUnavailable", err)
	}
}

func TestResolve_AcquireError(t *testing.T) {
	acq := &fakeAcquirer{err: &OverconstrainedError{Constraint: "facingMode", Value: "environment"}}
	r := NewResolver(cameras(), acq, WithUserAgent(androidUA))

	_, err := r.Resolve(context.Background(), "Back Camera")
	var oc *OverconstrainedError
	if !errors.As(err, &oc) {
		t.Fatalf("err = %v, want *OverconstrainedError", err)
	}
	if len(acq.got) != 1 || acq.got[0].DeviceID != "back-id" || !acq.got[0].FacingExact {
		t.Errorf("constraints = %+v", acq.got)
	}
}

func TestResolve_Dimensions(t *testing.T) {
	stream := &fakeStream{width: 64, height: 48}
	r := NewResolver(cameras(), &fakeAcquirer{stream: stream}, WithUserAgent(desktopUA))

	src, err := r.Resolve(context.Background(), "Front Camera")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer src.Close()

	if src.Width != 64 || src.Height != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", src.Width, src.Height)
	}
	if src.Constraints.DeviceID != "front-id" {
		t.Errorf("DeviceID = %q, want front-id", src.Constraints.DeviceID)
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if err := src.Frame(&frame); err != nil {
		t.Fatalf("Frame before Play: %v", err)
	}
	if frame.Cols() != 64 || frame.Rows() != 48 {
		t.Errorf("frame = %dx%d, want 64x48", frame.Cols(), frame.Rows())
	}
}

func TestResolve_MetadataTimeout(t *testing.T) {
	stream := &fakeStream{block: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.FirstFrameTimeout = 20 * time.Millisecond
	r := NewResolver(nil, &fakeAcquirer{stream: stream}, WithCapture(cfg))

	_, err := r.Resolve(context.Background(), "")
	if !errors.Is(err, ErrMetadataTimeout) {
		t.Errorf("err = %v, want ErrMetadataTimeout", err)
	}
	if !stream.closed {
		t.Error("stream should be closed after timeout")
	}
}

func TestResolve_Cancelled(t *testing.T) {
	stream := &fakeStream{block: make(chan struct{})}
	r := NewResolver(nil, &fakeAcquirer{stream: stream})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Resolve(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestVideoSource_Play(t *testing.T) {
	stream := &fakeStream{width: 32, height: 24, limit: 5}
	r := NewResolver(nil, &fakeAcquirer{stream: stream})

	src, err := r.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	src.Play()
	src.Play()

	deadline := time.Now().Add(2 * time.Second)
	for src.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !errors.Is(src.Err(), io.EOF) {
		t.Fatalf("Err = %v, want io.EOF", src.Err())
	}
	if got := src.Frames(); got != 5 {
		t.Errorf("Frames = %d, want 5", got)
	}

	frame := gocv.NewMat()
	defer frame.Close()
	err = src.Frame(&frame)
	if !errors.Is(err, ErrStreamEnded) || !errors.Is(err, io.EOF) {
		t.Errorf("Frame after EOF = %v, want ErrStreamEnded wrapping io.EOF", err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Frame(&frame); !errors.Is(err, ErrClosed) {
		t.Errorf("Frame after Close = %v, want ErrClosed", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDeviceForFacingMode(t *testing.T) {
	devices := cameras().devices

	id, ok := DeviceForFacingMode(devices, FacingEnvironment)
	if !ok || id != "back-id" {
		t.Errorf("environment = %q, %v; want back-id", id, ok)
	}
	id, ok = DeviceForFacingMode(devices, FacingUser)
	if !ok || id != "front-id" {
		t.Errorf("user = %q, %v; want front-id", id, ok)
	}
	if _, ok := DeviceForFacingMode(devices[:1], FacingUser); ok {
		t.Error("audio-only device list should not match")
	}
}
