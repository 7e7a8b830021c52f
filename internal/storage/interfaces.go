package storage

import (
	"context"
	"time"

	"ABWatch/internal/models"
)

// RunStore persists monitoring runs. CreateIfNoneRunning is the
// authoritative claim for the single-active-run invariant: the insert
// and the "no run is running" check execute as one statement.
type RunStore interface {
	CreateIfNoneRunning(ctx context.Context, run *models.MonitoringRun) error
	GetByID(ctx context.Context, id string) (*models.MonitoringRun, error)
	GetActive(ctx context.Context) (*models.MonitoringRun, error)
	UpdateProgress(ctx context.Context, id string, completed, errors int, currentTarget, currentProfile *string) error
	Finish(ctx context.Context, id string, status models.RunStatus) error
	FailStale(ctx context.Context, olderThan time.Duration) (int64, error)
	List(ctx context.Context, limit int) ([]*models.MonitoringRun, error)
}

// CheckStore persists executed checks.
type CheckStore interface {
	Create(ctx context.Context, check *models.UrlCheck) error
	ListByRun(ctx context.Context, runID string) ([]*models.UrlCheck, error)
}

// FailureStore persists failures reported through the signaling cookie.
type FailureStore interface {
	Create(ctx context.Context, failure *models.DetectedFailure) error
	GetByID(ctx context.Context, id string) (*models.DetectedFailure, error)
	List(ctx context.Context, status models.ResolutionStatus, limit int) ([]*models.DetectedFailure, error)
	UpdateResolution(ctx context.Context, id string, status models.ResolutionStatus, resolvedBy, notes *string) error
}

// TargetStore lists monitored URLs. Read-only from the core's side.
type TargetStore interface {
	ListActive(ctx context.Context) ([]*models.MonitoredTarget, error)
}

// ProfileStore lists browser profiles. Read-only from the core's side.
type ProfileStore interface {
	ListActive(ctx context.Context) ([]*models.BrowserProfile, error)
}

// RunLocker is the cross-process mutual exclusion primitive guarding
// run starts. Two trigger sources (scheduler and manual HTTP) may live
// in different processes, so in-process locking is not enough.
type RunLocker interface {
	Acquire(ctx context.Context, runID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, runID string) error
	Holder(ctx context.Context) (string, error)
}

// EventPublisher broadcasts run lifecycle and progress events.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}
