// Package scheduler triggers monitoring runs on a cron schedule and
// periodically sweeps runs whose process died mid-run.
package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"

	"ABWatch/internal/config"
	"ABWatch/internal/models"
	"ABWatch/internal/orchestrator"
)

const reconcileSpec = "*/5 * * * *"

type Scheduler struct {
	cron         *cron.Cron
	orchestrator *orchestrator.Orchestrator
	cfg          config.ScheduleConfig
	logger       *slog.Logger
}

func New(orch *orchestrator.Orchestrator, cfg config.ScheduleConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cron:         cron.New(),
		orchestrator: orch,
		cfg:          cfg,
		logger:       logger,
	}

	if _, err := s.cron.AddFunc(cfg.Cron, s.triggerRun); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(reconcileSpec, s.reconcile); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins firing scheduled jobs. Returns immediately.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started",
		"cron", s.cfg.Cron,
		"stale_after", s.cfg.StaleAfter,
	)
	s.cron.Start()
}

// Stop stops firing new jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) triggerRun() {
	ctx := context.Background()

	run, err := s.orchestrator.StartRun(ctx, models.TriggerScheduled)
	if err != nil {
		var active *orchestrator.RunActiveError
		if errors.As(err, &active) {
			// The previous run is still going; this tick is skipped,
			// not an error.
			s.logger.Info("scheduled run skipped, another run is active",
				"active_run_id", active.RunID,
			)
			return
		}

		if run != nil {
			s.logger.Error("scheduled run failed", "run_id", run.ID, "error", err)
		} else {
			s.logger.Error("failed to start scheduled run", "error", err)
		}
		return
	}

	s.logger.Info("scheduled run completed", "run_id", run.ID, "status", run.Status)
}

func (s *Scheduler) reconcile() {
	if s.cfg.StaleAfter <= 0 {
		return
	}

	swept, err := s.orchestrator.ReconcileStale(context.Background(), s.cfg.StaleAfter)
	if err != nil {
		s.logger.Error("stale run sweep failed", "error", err)
		return
	}
	if swept > 0 {
		s.logger.Warn("marked stale runs as failed", "count", swept)
	}
}
