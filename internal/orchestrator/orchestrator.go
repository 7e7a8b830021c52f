// Package orchestrator coordinates monitoring runs: it expands active
// targets and browser profiles into a task matrix, executes checks in
// bounded-concurrency batches and guarantees every run reaches a
// terminal state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ABWatch/internal/executor"
	"ABWatch/internal/models"
	"ABWatch/internal/storage"
	"ABWatch/pkg/uuidutil"
)

const eventsChannel = "abwatch:events"

// CheckExecutor runs one check. Satisfied by *executor.Executor.
type CheckExecutor interface {
	Execute(ctx context.Context, target models.MonitoredTarget, profile models.BrowserProfile) executor.Outcome
}

type Config struct {
	BatchSize  int
	RunLockTTL time.Duration
}

type Orchestrator struct {
	runs     storage.RunStore
	checks   storage.CheckStore
	failures storage.FailureStore
	targets  storage.TargetStore
	profiles storage.ProfileStore
	lock     storage.RunLocker
	events   storage.EventPublisher
	executor CheckExecutor
	cfg      Config
	logger   *slog.Logger

	mu          sync.Mutex
	activeRunID string
	cancelled   bool
	wg          sync.WaitGroup
}

func New(
	runs storage.RunStore,
	checks storage.CheckStore,
	failures storage.FailureStore,
	targets storage.TargetStore,
	profiles storage.ProfileStore,
	lock storage.RunLocker,
	events storage.EventPublisher,
	exec CheckExecutor,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 5
	}
	if cfg.RunLockTTL == 0 {
		cfg.RunLockTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		runs:     runs,
		checks:   checks,
		failures: failures,
		targets:  targets,
		profiles: profiles,
		lock:     lock,
		events:   events,
		executor: exec,
		cfg:      cfg,
		logger:   logger,
	}
}

// StartRun claims the single-run slot, creates the run and executes
// the whole task matrix synchronously. A run-level failure finalizes
// the run as failed and is returned to the trigger caller.
func (o *Orchestrator) StartRun(ctx context.Context, trigger models.TriggerSource) (*models.MonitoringRun, error) {
	run, tasks, err := o.claimRun(ctx, trigger)
	if err != nil {
		return nil, err
	}

	if err := o.executeRun(ctx, run, tasks); err != nil {
		return run, err
	}
	return run, nil
}

// StartRunAsync claims the run synchronously, so trigger conflicts are
// reported to the caller, then executes the matrix in the background.
// Background failures finalize the run as failed and are logged.
func (o *Orchestrator) StartRunAsync(ctx context.Context, trigger models.TriggerSource) (*models.MonitoringRun, error) {
	run, tasks, err := o.claimRun(ctx, trigger)
	if err != nil {
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// The run must outlive the trigger request.
		runCtx := context.WithoutCancel(ctx)
		if err := o.executeRun(runCtx, run, tasks); err != nil {
			o.logger.Error("monitoring run failed",
				"run_id", run.ID,
				"error", err,
			)
		}
	}()

	return run, nil
}

// Wait blocks until background runs have drained. Used on shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// claimRun builds the task matrix and atomically takes the
// single-active-run slot: redis lock first, then the conditional
// insert that the run table's partial unique index backs up.
func (o *Orchestrator) claimRun(ctx context.Context, trigger models.TriggerSource) (*models.MonitoringRun, []models.CheckTask, error) {
	targets, err := o.targets.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list active targets: %w", err)
	}

	profiles, err := o.profiles.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list active profiles: %w", err)
	}

	tasks := buildMatrix(targets, profiles)

	run := &models.MonitoringRun{
		ID:          uuidutil.New(),
		Trigger:     trigger,
		TotalChecks: len(tasks),
	}

	acquired, err := o.lock.Acquire(ctx, run.ID, o.cfg.RunLockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		holder, holderErr := o.lock.Holder(ctx)
		if holderErr != nil {
			o.logger.Warn("failed to read run lock holder", "error", holderErr)
		}
		return nil, nil, &RunActiveError{RunID: holder}
	}

	if err := o.runs.CreateIfNoneRunning(ctx, run); err != nil {
		o.releaseLock(run.ID)

		if errors.Is(err, storage.ErrRunConflict) {
			active, activeErr := o.runs.GetActive(ctx)
			if activeErr != nil || active == nil {
				return nil, nil, &RunActiveError{}
			}
			return nil, nil, &RunActiveError{RunID: active.ID}
		}
		return nil, nil, fmt.Errorf("failed to create monitoring run: %w", err)
	}

	o.mu.Lock()
	o.activeRunID = run.ID
	o.cancelled = false
	o.mu.Unlock()

	o.logger.Info("monitoring run started",
		"run_id", run.ID,
		"trigger", trigger,
		"targets", len(targets),
		"profiles", len(profiles),
		"total_checks", len(tasks),
	)

	o.publish(ctx, map[string]interface{}{
		"type":         "run_started",
		"run_id":       run.ID,
		"trigger":      trigger,
		"total_checks": len(tasks),
	})

	return run, tasks, nil
}

// executeRun processes the matrix batch by batch. Checks within a
// batch run concurrently; batches are sequential, which is what keeps
// the progress counters monotonic and bounds live browser processes.
func (o *Orchestrator) executeRun(ctx context.Context, run *models.MonitoringRun, tasks []models.CheckTask) (err error) {
	defer o.releaseLock(run.ID)
	defer func() {
		o.mu.Lock()
		if o.activeRunID == run.ID {
			o.activeRunID = ""
		}
		o.mu.Unlock()

		if err != nil {
			o.finalize(run, models.RunStatusFailed)
		}
	}()

	completed := 0
	errorsFound := 0

	for start := 0; start < len(tasks); start += o.cfg.BatchSize {
		if o.isCancelled(run.ID) {
			o.logger.Info("monitoring run cancelled, stopping before next batch",
				"run_id", run.ID,
				"checks_completed", completed,
			)
			return nil
		}

		end := min(start+o.cfg.BatchSize, len(tasks))
		batch := tasks[start:end]
		outcomes := o.runBatch(ctx, batch)

		for i, task := range batch {
			outcome := outcomes[i]

			check, persistErr := o.persistOutcome(ctx, run.ID, task, outcome)
			if persistErr != nil {
				return fmt.Errorf("failed to persist check result: %w", persistErr)
			}

			completed++
			if outcome.ErrorDetected || outcome.Status != models.CheckStatusSuccess {
				errorsFound++
			}

			if outcome.ErrorDetected && outcome.Report != nil {
				if failErr := o.persistFailure(ctx, task, check, outcome); failErr != nil {
					return fmt.Errorf("failed to persist detected failure: %w", failErr)
				}
			}
		}

		// Display fields are written only here, between batches, never
		// by concurrent workers. Last task in the batch wins.
		lastTask := batch[len(batch)-1]
		currentTarget := lastTask.Target.URL
		currentProfile := lastTask.Profile.Label()

		if err := o.runs.UpdateProgress(ctx, run.ID, completed, errorsFound, &currentTarget, &currentProfile); err != nil {
			return fmt.Errorf("failed to update run progress: %w", err)
		}

		o.publish(ctx, map[string]interface{}{
			"type":             "progress",
			"run_id":           run.ID,
			"checks_completed": completed,
			"checks_expected":  len(tasks),
			"errors_found":     errorsFound,
		})
	}

	run.ChecksCompleted = completed
	run.ErrorsFound = errorsFound
	o.finalize(run, models.RunStatusCompleted)

	o.logger.Info("monitoring run completed",
		"run_id", run.ID,
		"checks_completed", completed,
		"errors_found", errorsFound,
	)

	return nil
}

// runBatch executes one batch concurrently and waits for every task
// to settle. A panicking task becomes an error-status outcome so no
// work item is silently dropped.
func (o *Orchestrator) runBatch(ctx context.Context, batch []models.CheckTask) []executor.Outcome {
	outcomes := make([]executor.Outcome, len(batch))

	var wg sync.WaitGroup
	wg.Add(len(batch))
	for i, task := range batch {
		go func(i int, task models.CheckTask) {
			defer wg.Done()
			outcomes[i] = o.runTask(ctx, task)
		}(i, task)
	}
	wg.Wait()

	return outcomes
}

func (o *Orchestrator) runTask(ctx context.Context, task models.CheckTask) (outcome executor.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("check task panicked",
				"url", task.Target.URL,
				"profile", task.Profile.Label(),
				"panic", r,
			)
			msg := fmt.Sprintf("task panicked: %v", r)
			outcome = executor.Outcome{
				Status:       models.CheckStatusError,
				ErrorMessage: &msg,
			}
		}
	}()

	return o.executor.Execute(ctx, task.Target, task.Profile)
}

func (o *Orchestrator) persistOutcome(ctx context.Context, runID string, task models.CheckTask, outcome executor.Outcome) (*models.UrlCheck, error) {
	check := &models.UrlCheck{
		RunID:          runID,
		TargetID:       task.Target.ID,
		ProfileID:      task.Profile.ID,
		Status:         outcome.Status,
		PageLoadTimeMs: outcome.PageLoadTimeMs,
		CookieFound:    outcome.CookieFound,
		ErrorDetected:  outcome.ErrorDetected,
		ErrorMessage:   outcome.ErrorMessage,
		CheckedAt:      time.Now(),
	}

	if err := o.checks.Create(ctx, check); err != nil {
		return nil, err
	}
	return check, nil
}

func (o *Orchestrator) persistFailure(ctx context.Context, task models.CheckTask, check *models.UrlCheck, outcome executor.Outcome) error {
	failure := &models.DetectedFailure{
		CheckID:          check.ID,
		TargetID:         task.Target.ID,
		ClientID:         task.Target.ClientID,
		TestID:           outcome.Report.TestID,
		Variant:          outcome.Report.Variant,
		ErrorType:        outcome.Report.ErrorType,
		ErrorMessage:     outcome.Report.ErrorMessage,
		Browser:          outcome.Report.Browser,
		ReportedAt:       outcome.Report.Timestamp,
		DetectedAt:       time.Now(),
		ScreenshotPath:   outcome.ScreenshotPath,
		ResolutionStatus: models.ResolutionNew,
	}

	return o.failures.Create(ctx, failure)
}

// finalize is best effort against an already-terminal run: Cancel may
// have beaten the run loop to it.
func (o *Orchestrator) finalize(run *models.MonitoringRun, status models.RunStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.runs.Finish(ctx, run.ID, status); err != nil {
		o.logger.Warn("failed to finalize run",
			"run_id", run.ID,
			"status", status,
			"error", err,
		)
		return
	}

	run.Status = status

	o.publish(ctx, map[string]interface{}{
		"type":   "run_finished",
		"run_id": run.ID,
		"status": status,
	})
}

// Cancel marks the active run cancelled. Advisory: in-flight browser
// sessions finish their batch; no new batch starts. Takes effect
// within one batch.
func (o *Orchestrator) Cancel(ctx context.Context) (*models.MonitoringRun, error) {
	active, err := o.runs.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active run: %w", err)
	}
	if active == nil {
		return nil, ErrNoActiveRun
	}

	o.mu.Lock()
	if o.activeRunID == active.ID {
		o.cancelled = true
	}
	o.mu.Unlock()

	if err := o.runs.Finish(ctx, active.ID, models.RunStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel run %s: %w", active.ID, err)
	}
	o.releaseLock(active.ID)

	o.logger.Info("monitoring run cancelled", "run_id", active.ID)

	o.publish(ctx, map[string]interface{}{
		"type":   "run_finished",
		"run_id": active.ID,
		"status": models.RunStatusCancelled,
	})

	active.Status = models.RunStatusCancelled
	return active, nil
}

// LiveProgress returns the active run's progress, or nil when no run
// is active. Percentage is 0 for an empty matrix, never a division by
// zero.
func (o *Orchestrator) LiveProgress(ctx context.Context) (*models.RunProgress, error) {
	run, err := o.runs.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active run: %w", err)
	}
	if run == nil {
		return nil, nil
	}

	percentage := 0.0
	if run.TotalChecks > 0 {
		percentage = float64(run.ChecksCompleted) / float64(run.TotalChecks) * 100
	}

	progress := &models.RunProgress{
		RunID:           run.ID,
		ChecksCompleted: run.ChecksCompleted,
		ChecksExpected:  run.TotalChecks,
		Percentage:      percentage,
		ErrorsFound:     run.ErrorsFound,
	}
	if run.CurrentTarget != nil {
		progress.CurrentTarget = *run.CurrentTarget
	}
	if run.CurrentProfile != nil {
		progress.CurrentProfile = *run.CurrentProfile
	}

	return progress, nil
}

// RunHistory returns recent runs, newest first.
func (o *Orchestrator) RunHistory(ctx context.Context, limit int) ([]*models.MonitoringRun, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return o.runs.List(ctx, limit)
}

// RunChecks returns a run's checks denormalized for display.
func (o *Orchestrator) RunChecks(ctx context.Context, runID string) ([]*models.UrlCheck, error) {
	return o.checks.ListByRun(ctx, runID)
}

// GetRun returns one run by id, nil when absent.
func (o *Orchestrator) GetRun(ctx context.Context, id string) (*models.MonitoringRun, error) {
	return o.runs.GetByID(ctx, id)
}

// ReconcileStale fails runs stuck in running state longer than the
// threshold, typically after a process crash.
func (o *Orchestrator) ReconcileStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	count, err := o.runs.FailStale(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		o.logger.Warn("reconciled stale monitoring runs", "count", count, "older_than", olderThan)
	}
	return count, nil
}

func (o *Orchestrator) isCancelled(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled && o.activeRunID == runID
}

func (o *Orchestrator) releaseLock(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.lock.Release(ctx, runID); err != nil {
		o.logger.Warn("failed to release run lock", "run_id", runID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, message map[string]interface{}) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, eventsChannel, message); err != nil {
		o.logger.Warn("failed to publish run event", "error", err)
	}
}

func buildMatrix(targets []*models.MonitoredTarget, profiles []*models.BrowserProfile) []models.CheckTask {
	tasks := make([]models.CheckTask, 0, len(targets)*len(profiles))
	for _, target := range targets {
		for _, profile := range profiles {
			tasks = append(tasks, models.CheckTask{
				Target:  *target,
				Profile: *profile,
			})
		}
	}
	return tasks
}
