package camera

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

var (
	androidPattern = regexp.MustCompile(`(?i)Android`)
	iosPattern     = regexp.MustCompile(`(?i)ipad|iphone|ipod`)
)

// IsAndroid reports whether the user agent looks like an Android device.
func IsAndroid(userAgent string) bool {
	return androidPattern.MatchString(userAgent)
}

// IsIOS reports whether the user agent looks like an iOS device.
func IsIOS(userAgent string) bool {
	return iosPattern.MatchString(userAgent)
}

// IsMobile is a best-effort guess from the user agent string.
func IsMobile(userAgent string) bool {
	return IsAndroid(userAgent) || IsIOS(userAgent)
}

// DefaultUserAgent describes the running process in user-agent form so the
// same mobile heuristic applies to native builds.
func DefaultUserAgent() string {
	var platform string
	switch runtime.GOOS {
	case "android":
		platform = "Linux; Android"
	case "ios":
		platform = "iPhone; CPU iPhone OS"
	default:
		platform = runtime.GOOS
	}
	return fmt.Sprintf("posecam (%s; %s)", platform, runtime.GOARCH)
}

// FacingModeForLabel picks the mobile camera direction for a label.
// A label mentioning "back" requires the rear camera; anything else,
// including an empty label, prefers the front camera.
func FacingModeForLabel(label string) (mode FacingMode, exact bool) {
	if label == "" {
		return FacingUser, false
	}
	if strings.Contains(strings.ToLower(label), "back") {
		return FacingEnvironment, true
	}
	return FacingUser, false
}
