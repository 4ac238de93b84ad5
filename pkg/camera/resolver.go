package camera

import (
	"context"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/internal/log"
)

// DeviceKind classifies an enumerated media device.
type DeviceKind string

const (
	KindVideoInput  DeviceKind = "videoinput"
	KindAudioInput  DeviceKind = "audioinput"
	KindAudioOutput DeviceKind = "audiooutput"
)

// DeviceInfo describes one enumerated media device.
type DeviceInfo struct {
	Kind     DeviceKind `json:"kind"`
	Label    string     `json:"label"`
	DeviceID string     `json:"deviceId"`
}

// FacingMode selects the front or rear camera on mobile hardware.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Constraints is the request handed to the acquisition backend.
// Zero values leave the choice to the backend.
type Constraints struct {
	DeviceID    string     `json:"deviceId,omitempty"`
	FacingMode  FacingMode `json:"facingMode,omitempty"`
	FacingExact bool       `json:"facingExact,omitempty"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	FrameRate   int        `json:"frameRate,omitempty"`
}

// Stream is an acquired stream of decoded frames.
type Stream interface {
	// Read blocks until the next frame is decoded into dst.
	Read(dst *gocv.Mat) error
	Close() error
}

// Enumerator lists available media devices.
type Enumerator interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
}

// Acquirer opens a stream satisfying the given constraints.
type Acquirer interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Resolver maps a camera label to constraints and acquires the stream.
type Resolver struct {
	enumerator Enumerator
	acquirer   Acquirer
	userAgent  string
	capture    Config
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithUserAgent overrides the user agent used for the mobile heuristic.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) { r.userAgent = ua }
}

// WithCapture sets the requested capture size and rate.
func WithCapture(cfg Config) Option {
	return func(r *Resolver) { r.capture = cfg }
}

// NewResolver creates a resolver. Either capability may be nil when the
// platform lacks it: without an enumerator labels never match a device;
// without an acquirer Resolve fails with ErrCapabilityUnavailable.
func NewResolver(enumerator Enumerator, acquirer Acquirer, opts ...Option) *Resolver {
	r := &Resolver{
		enumerator: enumerator,
		acquirer:   acquirer,
		userAgent:  DefaultUserAgent(),
		capture:    DefaultConfig(),
		logger:     log.Component("camera"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Devices returns the enumerated devices, or nil if enumeration is unavailable.
func (r *Resolver) Devices(ctx context.Context) ([]DeviceInfo, error) {
	if r.enumerator == nil {
		return nil, nil
	}
	return r.enumerator.EnumerateDevices(ctx)
}

// Constraints builds the acquisition request for a label.
//
// An empty label asks for any camera (front-facing on mobile). Otherwise
// the first video input whose label equals the requested one supplies the
// device id. On mobile the facing mode is derived
// from the label as well.
func (r *Resolver) Constraints(ctx context.Context, label string) Constraints {
	c := Constraints{
		Width:     r.capture.Width,
		Height:    r.capture.Height,
		FrameRate: r.capture.Framerate,
	}
	mobile := IsMobile(r.userAgent)

	if label == "" {
		if mobile {
			c.FacingMode = FacingUser
		}
		return c
	}

	if id, ok := r.deviceIDForLabel(ctx, label); ok {
		c.DeviceID = id
	}
	if mobile {
		c.FacingMode, c.FacingExact = FacingModeForLabel(label)
	}
	return c
}

func (r *Resolver) deviceIDForLabel(ctx context.Context, label string) (string, bool) {
	devices, err := r.Devices(ctx)
	if err != nil {
		r.logger.Warn("device enumeration failed", "error", err)
		return "", false
	}
	for _, d := range devices {
		if d.Kind == KindVideoInput && d.Label == label {
			return d.DeviceID, true
		}
	}
	r.logger.Debug("no device matches label", "label", label, "devices", len(devices))
	return "", false
}

// Resolve acquires the camera for a label and returns a source whose
// dimensions are known. The source is not yet playing.
func (r *Resolver) Resolve(ctx context.Context, label string) (*VideoSource, error) {
	if r.acquirer == nil {
		return nil, ErrCapabilityUnavailable
	}

	c := r.Constraints(ctx, label)
	r.logger.Info("acquiring camera",
		"label", label,
		"device_id", c.DeviceID,
		"facing_mode", c.FacingMode,
		"exact", c.FacingExact)

	stream, err := r.acquirer.GetUserMedia(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("camera: get user media: %w", err)
	}

	src := newVideoSource(stream, c)
	timeout := r.capture.FirstFrameTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().FirstFrameTimeout
	}
	if err := src.awaitMetadata(ctx, timeout); err != nil {
		src.Close()
		return nil, err
	}

	r.logger.Info("camera ready", "width", src.Width, "height", src.Height)
	return src, nil
}
