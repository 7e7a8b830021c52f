package models

import "fmt"

type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// BrowserProfile is a named device/browser combination used to drive one check.
type BrowserProfile struct {
	ID             string     `json:"id"`
	Engine         string     `json:"engine"`
	Version        string     `json:"version"`
	DeviceType     DeviceType `json:"device_type"`
	OS             string     `json:"os"`
	ViewportWidth  int        `json:"viewport_width"`
	ViewportHeight int        `json:"viewport_height"`
	UserAgent      string     `json:"user_agent"`
	Active         bool       `json:"active"`
}

// Label is the short human-readable form used in progress displays
// and denormalized check listings.
func (p BrowserProfile) Label() string {
	if p.Version == "" {
		return fmt.Sprintf("%s (%s)", p.Engine, p.DeviceType)
	}
	return fmt.Sprintf("%s %s (%s)", p.Engine, p.Version, p.DeviceType)
}

// IsMobile reports whether the profile needs mobile emulation flags.
func (p BrowserProfile) IsMobile() bool {
	return p.DeviceType == DeviceMobile || p.DeviceType == DeviceTablet
}
