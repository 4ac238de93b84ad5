// Package config loads the posecam configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/posecam/pkg/camera"
	"github.com/teslashibe/posecam/pkg/pipeline"
)

// Camera backends.
const (
	BackendMediaDevices = "mediadevices"
	BackendOpenCV       = "opencv"
)

// ErrInvalid is returned by Load when the merged configuration is invalid.
var ErrInvalid = errors.New("config: invalid")

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	UserAgent string `yaml:"userAgent" json:"userAgent"`
	Backend   string `yaml:"backend" json:"backend"`

	// CapturePreset names a camera preset; Capture fields set in the file
	// still win over it.
	CapturePreset string        `yaml:"capturePreset" json:"capturePreset"`
	Capture       camera.Config `yaml:"capture" json:"capture"`

	HTTP  HTTPConfig           `yaml:"http" json:"http"`
	Model pipeline.ModelConfig `yaml:"model" json:"model"`
}

// HTTPConfig configures the dashboard.
type HTTPConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Port      string `yaml:"port" json:"port"`
	StaticDir string `yaml:"staticDir" json:"staticDir"`
	CameraFPS int    `yaml:"cameraFps" json:"cameraFps"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Backend:  BackendMediaDevices,
		Capture:  camera.DefaultConfig(),
		HTTP: HTTPConfig{
			Enabled:   true,
			Port:      "8080",
			CameraFPS: 10,
		},
		Model: pipeline.DefaultModelConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides, and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return &cfg, nil
}

// decode applies a preset first when the file names one, so explicit
// capture fields override it.
func (c *Config) decode(data []byte) error {
	var head struct {
		CapturePreset string `yaml:"capturePreset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.CapturePreset != "" {
		preset := camera.GetPreset(head.CapturePreset)
		if preset == nil {
			return fmt.Errorf("unknown capture preset %q (valid: %s)",
				head.CapturePreset, strings.Join(camera.PresetNames(), ", "))
		}
		c.Capture = *preset
	}
	return yaml.Unmarshal(data, c)
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() []string {
	var errs []string

	switch c.Backend {
	case BackendMediaDevices, BackendOpenCV:
	default:
		errs = append(errs, fmt.Sprintf("backend must be %q or %q, got %q",
			BackendMediaDevices, BackendOpenCV, c.Backend))
	}

	for _, e := range c.Capture.Validate() {
		errs = append(errs, "capture: "+e)
	}

	if c.HTTP.Enabled {
		if p, err := strconv.Atoi(c.HTTP.Port); err != nil || p < 1 || p > 65535 {
			errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %q", c.HTTP.Port))
		}
	}
	if c.HTTP.CameraFPS < 0 {
		errs = append(errs, "http.cameraFps must not be negative")
	}

	for _, e := range c.Model.Validate() {
		errs = append(errs, "model: "+e)
	}
	return errs
}

// Addr returns the dashboard listen address.
func (c *Config) Addr() string {
	return ":" + c.HTTP.Port
}
