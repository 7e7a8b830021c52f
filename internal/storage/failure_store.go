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

type failureStore struct {
	pool *pgxpool.Pool
}

func NewFailureStore(pool *pgxpool.Pool) FailureStore {
	return &failureStore{pool: pool}
}

func (s *failureStore) Create(ctx context.Context, failure *models.DetectedFailure) error {
	if failure.ID == "" {
		failure.ID = uuidutil.New()
	}
	if failure.DetectedAt.IsZero() {
		failure.DetectedAt = time.Now()
	}
	if failure.ResolutionStatus == "" {
		failure.ResolutionStatus = models.ResolutionNew
	}

	query := `
		INSERT INTO detected_failures (id, check_id, target_id, client_id, test_id, variant,
			error_type, error_message, browser, reported_at, detected_at, screenshot_path, resolution_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		failure.ID,
		failure.CheckID,
		failure.TargetID,
		failure.ClientID,
		failure.TestID,
		failure.Variant,
		failure.ErrorType,
		failure.ErrorMessage,
		failure.Browser,
		failure.ReportedAt,
		failure.DetectedAt,
		failure.ScreenshotPath,
		failure.ResolutionStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to create detected failure: %w", err)
	}

	return nil
}

func (s *failureStore) GetByID(ctx context.Context, id string) (*models.DetectedFailure, error) {
	query := failureSelect + ` WHERE id = $1`

	failure, err := scanFailure(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return failure, err
}

func (s *failureStore) List(ctx context.Context, status models.ResolutionStatus, limit int) ([]*models.DetectedFailure, error) {
	query := failureSelect
	args := []interface{}{limit}
	if status != "" {
		query += ` WHERE resolution_status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY detected_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failures: failed to query: %w", err)
	}
	defer rows.Close()

	var failures []*models.DetectedFailure
	for rows.Next() {
		failure, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("list failures: failed to scan row: %w", err)
		}
		failures = append(failures, failure)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list failures: row iteration error: %w", err)
	}

	return failures, nil
}

// UpdateResolution transitions the resolution workflow. Resolution
// metadata is populated iff the new status is resolved; moving away
// from resolved clears it.
func (s *failureStore) UpdateResolution(ctx context.Context, id string, status models.ResolutionStatus, resolvedBy, notes *string) error {
	if !models.ValidResolutionStatus(status) {
		return fmt.Errorf("invalid resolution status: %s", status)
	}

	var query string
	var args []interface{}

	if status == models.ResolutionResolved {
		query = `
			UPDATE detected_failures
			SET resolution_status = $1, resolved_by = $2, resolved_at = $3, resolution_notes = $4
			WHERE id = $5
		`
		args = []interface{}{status, resolvedBy, time.Now(), notes, id}
	} else {
		query = `
			UPDATE detected_failures
			SET resolution_status = $1, resolved_by = NULL, resolved_at = NULL, resolution_notes = NULL
			WHERE id = $2
		`
		args = []interface{}{status, id}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update resolution for failure %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("detected failure not found: %s", id)
	}

	return nil
}

const failureSelect = `
	SELECT id, check_id, target_id, client_id, test_id, variant,
	       error_type, error_message, browser, reported_at, detected_at,
	       screenshot_path, resolution_status, resolved_by, resolved_at, resolution_notes
	FROM detected_failures`

func scanFailure(row pgx.Row) (*models.DetectedFailure, error) {
	var f models.DetectedFailure
	err := row.Scan(
		&f.ID,
		&f.CheckID,
		&f.TargetID,
		&f.ClientID,
		&f.TestID,
		&f.Variant,
		&f.ErrorType,
		&f.ErrorMessage,
		&f.Browser,
		&f.ReportedAt,
		&f.DetectedAt,
		&f.ScreenshotPath,
		&f.ResolutionStatus,
		&f.ResolvedBy,
		&f.ResolvedAt,
		&f.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
