package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ABWatch/internal/models"
)

type targetStore struct {
	pool *pgxpool.Pool
}

func NewTargetStore(pool *pgxpool.Pool) TargetStore {
	return &targetStore{pool: pool}
}

// ListActive returns targets that are active and carry an active test.
// Both flags must be true to participate in a run.
func (s *targetStore) ListActive(ctx context.Context) ([]*models.MonitoredTarget, error) {
	query := `
		SELECT id, client_id, url, active, has_active_test
		FROM monitored_targets
		WHERE active = TRUE AND has_active_test = TRUE
		ORDER BY url
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active targets: failed to query: %w", err)
	}
	defer rows.Close()

	var targets []*models.MonitoredTarget
	for rows.Next() {
		var target models.MonitoredTarget
		err := rows.Scan(
			&target.ID,
			&target.ClientID,
			&target.URL,
			&target.Active,
			&target.HasActiveTest,
		)
		if err != nil {
			return nil, fmt.Errorf("list active targets: failed to scan row: %w", err)
		}
		targets = append(targets, &target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active targets: row iteration error: %w", err)
	}

	return targets, nil
}
