package orchestrator

import (
	"errors"
	"fmt"
)

var ErrNoActiveRun = errors.New("no run is currently active")

// RunActiveError signals a trigger conflict and carries the id of the
// run already holding the running state.
type RunActiveError struct {
	RunID string
}

func (e *RunActiveError) Error() string {
	return fmt.Sprintf("a monitoring run is already active: %s", e.RunID)
}
