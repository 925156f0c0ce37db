package db

import (
	"context"
	"fmt"
	"strings"

	"chesed/internal/models"
)

// UpsertNeighborhood makes sure a neighborhood with this name exists and is active.
func (s *Store) UpsertNeighborhood(ctx context.Context, name string) (*models.Neighborhood, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("neighborhood name is empty: %w", models.ErrValidation)
	}
	if err := upsertNeighborhoodName(ctx, s.db, name); err != nil {
		return nil, err
	}
	return s.GetNeighborhood(ctx, models.NeighborhoodID(name))
}

func upsertNeighborhoodName(ctx context.Context, q querier, name string) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO neighborhoods (id, name, active, sort_order)
        VALUES ($1, $2, TRUE, 0)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = TRUE`,
		models.NeighborhoodID(name), strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("upsert neighborhood %q: %w", name, err)
	}
	return nil
}

// GetNeighborhood reads one neighborhood by id.
func (s *Store) GetNeighborhood(ctx context.Context, id string) (*models.Neighborhood, error) {
	var n models.Neighborhood
	err := s.db.QueryRowContext(ctx, `SELECT id, name, active, sort_order FROM neighborhoods WHERE id = $1`, id).
		Scan(&n.ID, &n.Name, &n.Active, &n.Order)
	if err != nil {
		return nil, notFoundOr(err, "neighborhood "+id)
	}
	return &n, nil
}

// ListNeighborhoods returns neighborhoods ordered for display. activeOnly hides deactivated ones.
func (s *Store) ListNeighborhoods(ctx context.Context, activeOnly bool) ([]models.Neighborhood, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, active, sort_order
        FROM neighborhoods
        WHERE ($1 = FALSE OR active = TRUE)
        ORDER BY sort_order, name`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list neighborhoods: %w", err)
	}
	defer rows.Close()
	var out []models.Neighborhood
	for rows.Next() {
		var n models.Neighborhood
		if err := rows.Scan(&n.ID, &n.Name, &n.Active, &n.Order); err != nil {
			return nil, fmt.Errorf("scan neighborhood: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SetNeighborhoodActive toggles visibility in volunteer pickers.
func (s *Store) SetNeighborhoodActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE neighborhoods SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set neighborhood %s active: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("neighborhood %s: %w", id, models.ErrNotFound)
	}
	return nil
}
