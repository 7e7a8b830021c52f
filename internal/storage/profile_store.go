package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ABWatch/internal/models"
)

type profileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) ProfileStore {
	return &profileStore{pool: pool}
}

func (s *profileStore) ListActive(ctx context.Context) ([]*models.BrowserProfile, error) {
	query := `
		SELECT id, engine, version, device_type, os, viewport_width, viewport_height, user_agent, active
		FROM browser_profiles
		WHERE active = TRUE
		ORDER BY engine, version
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active profiles: failed to query: %w", err)
	}
	defer rows.Close()

	var profiles []*models.BrowserProfile
	for rows.Next() {
		var profile models.BrowserProfile
		err := rows.Scan(
			&profile.ID,
			&profile.Engine,
			&profile.Version,
			&profile.DeviceType,
			&profile.OS,
			&profile.ViewportWidth,
			&profile.ViewportHeight,
			&profile.UserAgent,
			&profile.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("list active profiles: failed to scan row: %w", err)
		}
		profiles = append(profiles, &profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active profiles: row iteration error: %w", err)
	}

	return profiles, nil
}
