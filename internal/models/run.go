package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

type TriggerSource string

const (
	TriggerScheduled TriggerSource = "scheduled"
	TriggerManual    TriggerSource = "manual"
)

// MonitoringRun is one orchestration cycle over the target x profile matrix.
type MonitoringRun struct {
	ID              string        `json:"id"`
	Status          RunStatus     `json:"status"`
	Trigger         TriggerSource `json:"trigger"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	TotalChecks     int           `json:"total_checks"`
	ChecksCompleted int           `json:"checks_completed"`
	ErrorsFound     int           `json:"errors_found"`
	CurrentTarget   *string       `json:"current_target,omitempty"`
	CurrentProfile  *string       `json:"current_profile,omitempty"`
}

// RunProgress is the live view of the active run.
type RunProgress struct {
	RunID           string  `json:"run_id"`
	ChecksCompleted int     `json:"checks_completed"`
	ChecksExpected  int     `json:"checks_expected"`
	Percentage      float64 `json:"percentage"`
	ErrorsFound     int     `json:"errors_found"`
	CurrentTarget   string  `json:"current_target,omitempty"`
	CurrentProfile  string  `json:"current_profile,omitempty"`
}
