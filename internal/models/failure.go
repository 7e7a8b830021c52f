package models

import "time"

type ResolutionStatus string

const (
	ResolutionNew           ResolutionStatus = "new"
	ResolutionAcknowledged  ResolutionStatus = "acknowledged"
	ResolutionInvestigating ResolutionStatus = "investigating"
	ResolutionResolved      ResolutionStatus = "resolved"
	ResolutionIgnored       ResolutionStatus = "ignored"
)

func ValidResolutionStatus(s ResolutionStatus) bool {
	switch s {
	case ResolutionNew, ResolutionAcknowledged, ResolutionInvestigating, ResolutionResolved, ResolutionIgnored:
		return true
	}
	return false
}

// DetectedFailure is created when a check's signaling cookie reports an error.
// Resolution metadata is populated iff resolution_status=resolved.
// Browser and ReportedAt come from inside the cookie and are client-supplied.
type DetectedFailure struct {
	ID               string           `json:"id"`
	CheckID          string           `json:"check_id"`
	TargetID         string           `json:"target_id"`
	ClientID         string           `json:"client_id"`
	TestID           string           `json:"test_id"`
	Variant          string           `json:"variant"`
	ErrorType        string           `json:"error_type"`
	ErrorMessage     string           `json:"error_message"`
	Browser          string           `json:"browser"`
	ReportedAt       time.Time        `json:"reported_at"`
	DetectedAt       time.Time        `json:"detected_at"`
	ScreenshotPath   *string          `json:"screenshot_path,omitempty"`
	ResolutionStatus ResolutionStatus `json:"resolution_status"`
	ResolvedBy       *string          `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	ResolutionNotes  *string          `json:"resolution_notes,omitempty"`
}
