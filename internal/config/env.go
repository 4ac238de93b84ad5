package config

import (
	"os"
	"strings"
)

// Environment overrides, applied after the config file.
const (
	EnvCamera    = "POSECAM_CAMERA"
	EnvLogLevel  = "POSECAM_LOG_LEVEL"
	EnvUserAgent = "POSECAM_USER_AGENT"
	EnvModelURL  = "POSECAM_MODEL_URL"
	EnvHTTPPort  = "POSECAM_HTTP_PORT"
)

// envOr returns the trimmed value of key, or def when it is unset or blank.
func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ApplyEnv overrides fields from POSECAM_* variables.
func (c *Config) ApplyEnv() {
	c.Model.Camera = envOr(EnvCamera, c.Model.Camera)
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
	c.UserAgent = envOr(EnvUserAgent, c.UserAgent)
	c.Model.Input.ModelURL = envOr(EnvModelURL, c.Model.Input.ModelURL)
	c.HTTP.Port = envOr(EnvHTTPPort, c.HTTP.Port)
}
