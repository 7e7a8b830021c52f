package models

import "time"

type CheckStatus string

const (
	CheckStatusSuccess     CheckStatus = "success"
	CheckStatusTimeout     CheckStatus = "timeout"
	CheckStatusError       CheckStatus = "error"
	CheckStatusUnreachable CheckStatus = "unreachable"
)

// UrlCheck is the durable record of one executed check.
// Invariants: cookie_found=false implies error_detected=false;
// status=unreachable implies page_load_time_ms is absent.
type UrlCheck struct {
	ID             string      `json:"id"`
	RunID          string      `json:"run_id"`
	TargetID       string      `json:"target_id"`
	ProfileID      string      `json:"profile_id"`
	Status         CheckStatus `json:"status"`
	PageLoadTimeMs *int64      `json:"page_load_time_ms,omitempty"`
	CookieFound    bool        `json:"cookie_found"`
	ErrorDetected  bool        `json:"error_detected"`
	ErrorMessage   *string     `json:"error_message,omitempty"`
	CheckedAt      time.Time   `json:"checked_at"`

	// Denormalized for display, populated on reads only.
	TargetURL    string `json:"target_url,omitempty"`
	ProfileLabel string `json:"profile_label,omitempty"`
}

// CheckTask is one (target, profile) work item. In-memory only.
type CheckTask struct {
	Target  MonitoredTarget
	Profile BrowserProfile
}
