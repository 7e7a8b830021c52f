package models

import "testing"

func TestBrowserProfileLabel(t *testing.T) {
	tests := []struct {
		name    string
		profile BrowserProfile
		want    string
	}{
		{"with version", BrowserProfile{Engine: "Chrome", Version: "120", DeviceType: DeviceDesktop}, "Chrome 120 (desktop)"},
		{"without version", BrowserProfile{Engine: "Chrome", DeviceType: DeviceDesktop}, "Chrome (desktop)"},
		{"mobile", BrowserProfile{Engine: "Safari", Version: "17", DeviceType: DeviceMobile}, "Safari 17 (mobile)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}
