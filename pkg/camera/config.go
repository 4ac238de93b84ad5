// Package camera resolves media constraints from a camera label and
// acquires a playing video source.
package camera

import "time"

// Config holds capture settings requested from the device.
// Zero width/height/framerate leave the choice to the device.
type Config struct {
	Width     int `json:"width" yaml:"width"`         // Frame width in pixels
	Height    int `json:"height" yaml:"height"`       // Frame height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Target FPS

	// FirstFrameTimeout bounds how long Resolve waits for the first frame.
	FirstFrameTimeout time.Duration `json:"first_frame_timeout" yaml:"firstFrameTimeout"`
}

// Capture limits.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the capture settings used when nothing is configured.
// 640x480 matches what most webcams deliver by default and keeps inference cheap.
func DefaultConfig() Config {
	return Config{
		Width:             640,
		Height:            480,
		Framerate:         30,
		FirstFrameTimeout: 10 * time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width != 0 && (c.Width < 160 || c.Width > MaxWidth) {
		errors = append(errors, "width must be 0 (device default) or between 160 and 3840")
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > MaxHeight) {
		errors = append(errors, "height must be 0 (device default) or between 120 and 2160")
	}
	if c.Framerate != 0 && (c.Framerate < 1 || c.Framerate > MaxFramerate) {
		errors = append(errors, "framerate must be 0 (device default) or between 1 and 120")
	}
	if c.FirstFrameTimeout < 0 {
		errors = append(errors, "first_frame_timeout must not be negative")
	}

	return errors
}
