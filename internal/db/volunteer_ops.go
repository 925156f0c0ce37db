package db

import (
	"context"
	"fmt"
	"time"

	"chesed/internal/constants"
	"chesed/internal/models"
)

const volunteerColumns = `id, display_name, email, last_seen, daily_goal, weekly_goal, monthly_goal, created_at, updated_at`

func scanVolunteer(row rowScanner) (*models.Volunteer, error) {
	var v models.Volunteer
	if err := row.Scan(&v.ID, &v.DisplayName, &v.Email, &v.LastSeen,
		&v.Goals.Daily, &v.Goals.Weekly, &v.Goals.Monthly, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// TouchVolunteer records a heartbeat, creating the volunteer on first contact.
// Empty name or email never overwrite stored values.
func (s *Store) TouchVolunteer(ctx context.Context, id, displayName, email string, at time.Time) (*models.Volunteer, error) {
	v, err := scanVolunteer(s.db.QueryRowContext(ctx, `
        INSERT INTO volunteers (id, display_name, email, last_seen, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4, $4)
        ON CONFLICT (id) DO UPDATE SET
            display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), volunteers.display_name),
            email = COALESCE(NULLIF(EXCLUDED.email, ''), volunteers.email),
            last_seen = EXCLUDED.last_seen,
            updated_at = EXCLUDED.updated_at
        RETURNING `+volunteerColumns,
		id, displayName, email, at))
	if err != nil {
		return nil, fmt.Errorf("touch volunteer %s: %w", id, err)
	}
	return v, nil
}

// GetVolunteer reads one volunteer.
func (s *Store) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	v, err := scanVolunteer(s.db.QueryRowContext(ctx, `SELECT `+volunteerColumns+` FROM volunteers WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "volunteer "+id)
	}
	return v, nil
}

// ListVolunteers returns every volunteer, most recently seen first.
func (s *Store) ListVolunteers(ctx context.Context) ([]models.Volunteer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+volunteerColumns+` FROM volunteers ORDER BY last_seen DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("list volunteers: %w", err)
	}
	defer rows.Close()
	var out []models.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan volunteer: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// UpdateGoals stores the volunteer's personal targets, creating the volunteer
// row if the first heartbeat has not arrived yet.
func (s *Store) UpdateGoals(ctx context.Context, id string, g models.Goals, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO volunteers (id, daily_goal, weekly_goal, monthly_goal, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (id) DO UPDATE SET
            daily_goal = EXCLUDED.daily_goal,
            weekly_goal = EXCLUDED.weekly_goal,
            monthly_goal = EXCLUDED.monthly_goal,
            updated_at = EXCLUDED.updated_at`,
		id, g.Daily, g.Weekly, g.Monthly, at)
	if err != nil {
		return fmt.Errorf("update goals of %s: %w", id, err)
	}
	return nil
}

// VolunteerCounts aggregates assigned (still active) and delivered deliveries per volunteer.
func (s *Store) VolunteerCounts(ctx context.Context) (map[string]models.VolunteerCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT assigned_volunteer_id,
               COUNT(*) FILTER (WHERE status <> $1 AND volunteer_completed = FALSE),
               COUNT(*) FILTER (WHERE status = $1)
        FROM deliveries
        WHERE assigned_volunteer_id IS NOT NULL
        GROUP BY assigned_volunteer_id`, constants.STATUS_DELIVERED)
	if err != nil {
		return nil, fmt.Errorf("volunteer counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]models.VolunteerCounts)
	for rows.Next() {
		var id string
		var c models.VolunteerCounts
		if err := rows.Scan(&id, &c.Assigned, &c.Delivered); err != nil {
			return nil, fmt.Errorf("scan volunteer counts: %w", err)
		}
		out[id] = c
	}
	return out, rows.Err()
}

// DeliveredCounts counts deliveries the volunteer delivered since each cut-off,
// plus the all-time total and the currently active count.
func (s *Store) DeliveredCounts(ctx context.Context, volunteerID string, day, week, month time.Time) (models.VolunteerStats, error) {
	st := models.VolunteerStats{VolunteerID: volunteerID}
	err := s.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE status = $2 AND delivered_by = $1 AND delivered_at >= $3),
            COUNT(*) FILTER (WHERE status = $2 AND delivered_by = $1 AND delivered_at >= $4),
            COUNT(*) FILTER (WHERE status = $2 AND delivered_by = $1 AND delivered_at >= $5),
            COUNT(*) FILTER (WHERE status = $2 AND delivered_by = $1),
            COUNT(*) FILTER (WHERE assigned_volunteer_id = $1 AND status <> $2 AND volunteer_completed = FALSE)
        FROM deliveries
        WHERE delivered_by = $1 OR assigned_volunteer_id = $1`,
		volunteerID, constants.STATUS_DELIVERED, day, week, month).
		Scan(&st.DeliveredToday, &st.DeliveredWeek, &st.DeliveredMonth, &st.DeliveredTotal, &st.ActiveCount)
	if err != nil {
		return st, fmt.Errorf("delivered counts of %s: %w", volunteerID, err)
	}
	return st, nil
}

// TopDeliverers returns volunteer ids ordered by delivered count.
func (s *Store) TopDeliverers(ctx context.Context, limit int) ([]models.VolunteerSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT d.delivered_by, COALESCE(v.display_name, ''), COALESCE(v.email, ''), COUNT(*)
        FROM deliveries d
        LEFT JOIN volunteers v ON v.id = d.delivered_by
        WHERE d.status = $1 AND d.delivered_by IS NOT NULL
        GROUP BY d.delivered_by, v.display_name, v.email
        ORDER BY COUNT(*) DESC
        LIMIT $2`, constants.STATUS_DELIVERED, limit)
	if err != nil {
		return nil, fmt.Errorf("top deliverers: %w", err)
	}
	defer rows.Close()
	var out []models.VolunteerSummary
	for rows.Next() {
		var row models.VolunteerSummary
		if err := rows.Scan(&row.ID, &row.DisplayName, &row.Email, &row.DeliveredCount); err != nil {
			return nil, fmt.Errorf("scan top deliverer: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
