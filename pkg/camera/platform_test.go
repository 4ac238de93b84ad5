package camera

import (
	"strings"
	"testing"
)

func TestIsMobile(t *testing.T) {
	tests := []struct {
		ua      string
		android bool
		ios     bool
	}{
		{desktopUA, false, false},
		{androidUA, true, false},
		{iphoneUA, false, true},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", false, true},
		{"Mozilla/5.0 (iPod touch; CPU iPhone OS 12_0)", false, true},
		{"mozilla/5.0 (linux; ANDROID 10)", true, false},
		{"", false, false},
	}

	for _, tc := range tests {
		if got := IsAndroid(tc.ua); got != tc.android {
			t.Errorf("IsAndroid(%q) = %v, want %v", tc.ua, got, tc.android)
		}
		if got := IsIOS(tc.ua); got != tc.ios {
			t.Errorf("IsIOS(%q) = %v, want %v", tc.ua, got, tc.ios)
		}
		if got := IsMobile(tc.ua); got != (tc.android || tc.ios) {
			t.Errorf("IsMobile(%q) = %v", tc.ua, got)
		}
	}
}

func TestFacingModeForLabel(t *testing.T) {
	tests := []struct {
		label string
		mode  FacingMode
		exact bool
	}{
		{"", FacingUser, false},
		{"Front Camera", FacingUser, false},
		{"Back Camera", FacingEnvironment, true},
		{"camera2 0, facing back", FacingEnvironment, true},
		{"BACK", FacingEnvironment, true},
		{"USB Webcam", FacingUser, false},
	}

	for _, tc := range tests {
		mode, exact := FacingModeForLabel(tc.label)
		if mode != tc.mode || exact != tc.exact {
			t.Errorf("FacingModeForLabel(%q) = %s, %v; want %s, %v", tc.label, mode, exact, tc.mode, tc.exact)
		}
	}
}

func TestDefaultUserAgent(t *testing.T) {
	ua := DefaultUserAgent()
	if !strings.HasPrefix(ua, "posecam (") {
		t.Errorf("DefaultUserAgent() = %q", ua)
	}
}

func TestConfigValidate(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}

	bad := Config{Width: 50, Height: 5000, Framerate: 500, FirstFrameTimeout: -1}
	if errs := bad.Validate(); len(errs) != 4 {
		t.Errorf("Validate() = %v, want 4 errors", errs)
	}

	if GetPreset("nope") != nil {
		t.Error("unknown preset should be nil")
	}
}
