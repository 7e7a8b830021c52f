package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ABWatch/internal/models"
	"ABWatch/pkg/uuidutil"
)

// ErrRunConflict is returned when another run holds the running state.
var ErrRunConflict = errors.New("another run is already running")

type runStore struct {
	pool *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) RunStore {
	return &runStore{pool: pool}
}

// CreateIfNoneRunning inserts the run only when no other run is in the
// running state, in a single statement. The partial unique index on
// status='running' backs this up against concurrent callers.
func (s *runStore) CreateIfNoneRunning(ctx context.Context, run *models.MonitoringRun) error {
	if run.ID == "" {
		run.ID = uuidutil.New()
	}
	run.Status = models.RunStatusRunning
	run.StartedAt = time.Now()

	query := `
		INSERT INTO monitoring_runs (id, status, trigger_source, started_at, total_checks, checks_completed, errors_found)
		SELECT $1, $2, $3, $4, $5, 0, 0
		WHERE NOT EXISTS (SELECT 1 FROM monitoring_runs WHERE status = $2)
	`

	tag, err := s.pool.Exec(ctx, query,
		run.ID,
		models.RunStatusRunning,
		run.Trigger,
		run.StartedAt,
		run.TotalChecks,
	)
	if err != nil {
		return fmt.Errorf("failed to create monitoring run: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrRunConflict
	}

	return nil
}

func (s *runStore) GetByID(ctx context.Context, id string) (*models.MonitoringRun, error) {
	query := runSelect + ` WHERE id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *runStore) GetActive(ctx context.Context) (*models.MonitoringRun, error) {
	query := runSelect + ` WHERE status = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, models.RunStatusRunning))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *runStore) UpdateProgress(ctx context.Context, id string, completed, errorsFound int, currentTarget, currentProfile *string) error {
	query := `
		UPDATE monitoring_runs
		SET checks_completed = $1, errors_found = $2, current_target = $3, current_profile = $4
		WHERE id = $5 AND status = $6
	`

	_, err := s.pool.Exec(ctx, query, completed, errorsFound, currentTarget, currentProfile, id, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	return nil
}

// Finish moves a running run into a terminal state exactly once;
// already-terminal runs are left untouched.
func (s *runStore) Finish(ctx context.Context, id string, status models.RunStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot finish run with non-terminal status %s", status)
	}

	query := `
		UPDATE monitoring_runs
		SET status = $1, completed_at = $2, current_target = NULL, current_profile = NULL
		WHERE id = $3 AND status = $4
	`

	tag, err := s.pool.Exec(ctx, query, status, time.Now(), id, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s is not running, refusing to change terminal state", id)
	}

	return nil
}

// FailStale marks runs abandoned by a crashed process as failed so
// they stop blocking future triggers.
func (s *runStore) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE monitoring_runs
		SET status = $1, completed_at = $2, current_target = NULL, current_profile = NULL
		WHERE status = $3 AND started_at < $4
	`

	tag, err := s.pool.Exec(ctx, query,
		models.RunStatusFailed,
		time.Now(),
		models.RunStatusRunning,
		time.Now().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile stale runs: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *runStore) List(ctx context.Context, limit int) ([]*models.MonitoringRun, error) {
	query := runSelect + ` ORDER BY started_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: failed to query (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	var runs []*models.MonitoringRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: failed to scan row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: row iteration error: %w", err)
	}

	return runs, nil
}

const runSelect = `
	SELECT id, status, trigger_source, started_at, completed_at,
	       total_checks, checks_completed, errors_found, current_target, current_profile
	FROM monitoring_runs`

func scanRun(row pgx.Row) (*models.MonitoringRun, error) {
	var run models.MonitoringRun
	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.Trigger,
		&run.StartedAt,
		&run.CompletedAt,
		&run.TotalChecks,
		&run.ChecksCompleted,
		&run.ErrorsFound,
		&run.CurrentTarget,
		&run.CurrentProfile,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
