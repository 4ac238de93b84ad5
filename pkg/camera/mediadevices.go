package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/internal/log"
)

// MediaDevices acquires cameras through pion/mediadevices. It supports
// both enumeration and acquisition. Drivers must be registered by the
// caller with a blank import of github.com/pion/mediadevices/pkg/driver/camera.
type MediaDevices struct {
	logger *slog.Logger
}

// NewMediaDevices creates the mediadevices backend.
func NewMediaDevices() *MediaDevices {
	return &MediaDevices{logger: log.Component("mediadevices")}
}

// EnumerateDevices lists registered drivers as media devices.
func (m *MediaDevices) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []DeviceInfo
	for _, d := range mediadevices.EnumerateDevices() {
		var kind DeviceKind
		switch d.Kind {
		case mediadevices.VideoInput:
			kind = KindVideoInput
		case mediadevices.AudioInput:
			kind = KindAudioInput
		default:
			continue
		}
		out = append(out, DeviceInfo{Kind: kind, Label: d.Label, DeviceID: d.DeviceID})
	}
	return out, nil
}

// GetUserMedia opens a video track matching the constraints.
//
// Desktop drivers report no facing direction, so a facing mode without a
// device id is matched against device labels. An exact facing mode with no
// matching device fails with *OverconstrainedError.
func (m *MediaDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	deviceID := c.DeviceID
	if deviceID == "" && c.FacingMode != "" {
		devices, err := m.EnumerateDevices(ctx)
		if err != nil {
			return nil, err
		}
		id, ok := DeviceForFacingMode(devices, c.FacingMode)
		if !ok && c.FacingExact {
			return nil, &OverconstrainedError{Constraint: "facingMode", Value: string(c.FacingMode)}
		}
		deviceID = id
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			if deviceID != "" {
				mc.DeviceID = prop.StringExact(deviceID)
			}
			if c.Width > 0 {
				mc.Width = prop.Int(c.Width)
			}
			if c.Height > 0 {
				mc.Height = prop.Int(c.Height)
			}
			if c.FrameRate > 0 {
				mc.FrameRate = prop.Float(c.FrameRate)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, ErrNoVideoTrack
	}
	track, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		tracks[0].Close()
		return nil, fmt.Errorf("camera: unexpected track type %T", tracks[0])
	}

	m.logger.Debug("video track opened", "device_id", deviceID, "track_id", track.ID())
	return &trackStream{track: track, reader: track.NewReader(false)}, nil
}

// DeviceForFacingMode picks the first video input whose label suggests the
// requested direction.
func DeviceForFacingMode(devices []DeviceInfo, mode FacingMode) (string, bool) {
	var hints []string
	switch mode {
	case FacingEnvironment:
		hints = []string{"back", "rear", "environment"}
	case FacingUser:
		hints = []string{"front", "user", "facetime"}
	}

	for _, d := range devices {
		if d.Kind != KindVideoInput {
			continue
		}
		label := strings.ToLower(d.Label)
		for _, h := range hints {
			if strings.Contains(label, h) {
				return d.DeviceID, true
			}
		}
	}
	return "", false
}

type trackStream struct {
	track  *mediadevices.VideoTrack
	reader video.Reader
}

func (s *trackStream) Read(dst *gocv.Mat) error {
	img, release, err := s.reader.Read()
	if err != nil {
		return err
	}
	defer release()

	return imageToMat(img, dst)
}

func (s *trackStream) Close() error {
	return s.track.Close()
}

func imageToMat(img image.Image, dst *gocv.Mat) error {
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("camera: convert frame: %w", err)
	}
	defer m.Close()

	m.CopyTo(dst)
	return nil
}
