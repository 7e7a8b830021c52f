package models

// MonitoredTarget is a client-provided URL under monitoring.
// Consumed read-only by the orchestrator; only targets with
// Active and HasActiveTest both true participate in a run.
type MonitoredTarget struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id"`
	URL           string `json:"url"`
	Active        bool   `json:"active"`
	HasActiveTest bool   `json:"has_active_test"`
}
