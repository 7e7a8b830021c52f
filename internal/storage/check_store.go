package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ABWatch/internal/models"
	"ABWatch/pkg/uuidutil"
)

type checkStore struct {
	pool *pgxpool.Pool
}

func NewCheckStore(pool *pgxpool.Pool) CheckStore {
	return &checkStore{pool: pool}
}

func (s *checkStore) Create(ctx context.Context, check *models.UrlCheck) error {
	if check.ID == "" {
		check.ID = uuidutil.New()
	}
	if check.CheckedAt.IsZero() {
		check.CheckedAt = time.Now()
	}

	query := `
		INSERT INTO url_checks (id, run_id, target_id, profile_id, status,
			page_load_time_ms, cookie_found, error_detected, error_message, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		check.ID,
		check.RunID,
		check.TargetID,
		check.ProfileID,
		check.Status,
		check.PageLoadTimeMs,
		check.CookieFound,
		check.ErrorDetected,
		check.ErrorMessage,
		check.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create url check: %w", err)
	}

	return nil
}

// ListByRun returns a run's checks denormalized with target URL and
// profile label for display.
func (s *checkStore) ListByRun(ctx context.Context, runID string) ([]*models.UrlCheck, error) {
	query := `
		SELECT c.id, c.run_id, c.target_id, c.profile_id, c.status,
		       c.page_load_time_ms, c.cookie_found, c.error_detected, c.error_message, c.checked_at,
		       t.url,
		       p.engine, p.version, p.device_type
		FROM url_checks c
		JOIN monitored_targets t ON t.id = c.target_id
		JOIN browser_profiles p ON p.id = c.profile_id
		WHERE c.run_id = $1
		ORDER BY c.checked_at
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list checks: failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	var checks []*models.UrlCheck
	for rows.Next() {
		var check models.UrlCheck
		var profile models.BrowserProfile
		err := rows.Scan(
			&check.ID,
			&check.RunID,
			&check.TargetID,
			&check.ProfileID,
			&check.Status,
			&check.PageLoadTimeMs,
			&check.CookieFound,
			&check.ErrorDetected,
			&check.ErrorMessage,
			&check.CheckedAt,
			&check.TargetURL,
			&profile.Engine,
			&profile.Version,
			&profile.DeviceType,
		)
		if err != nil {
			return nil, fmt.Errorf("list checks: failed to scan row: %w", err)
		}
		// Label is built in Go so listings agree with the progress
		// display, which uses BrowserProfile.Label too.
		check.ProfileLabel = profile.Label()
		checks = append(checks, &check)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checks: row iteration error: %w", err)
	}

	return checks, nil
}
