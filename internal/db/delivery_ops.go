package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"chesed/internal/constants"
	"chesed/internal/models"
)

const deliveryColumns = `id, recipient_name, street, city, neighborhood, apartment, door_code,
        lat, lng, phone, package_count, notes, household_size, campaign, status,
        assigned_volunteer_id, volunteer_completed, created_by, created_at, updated_at,
        delivered_by, delivered_at`

func scanDelivery(row rowScanner) (*models.Delivery, error) {
	var d models.Delivery
	err := row.Scan(
		&d.ID, &d.RecipientName, &d.Address.Street, &d.Address.City, &d.Address.Neighborhood,
		&d.Address.Apartment, &d.Address.DoorCode, &d.Address.Lat, &d.Address.Lng,
		&d.Phone, &d.PackageCount, &d.Notes, &d.HouseholdSize, &d.Campaign, &d.Status,
		&d.AssignedVolunteerID, &d.VolunteerCompleted, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
		&d.DeliveredBy, &d.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeliveries(rows *sql.Rows) ([]models.Delivery, error) {
	defer rows.Close()
	var out []models.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// CreateDelivery inserts a delivery, upserts its neighborhood and, when the
// delivery is pending and unassigned, its pending-index entry. All in one transaction.
func (s *Store) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO deliveries (`+deliveryColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
			d.ID, d.RecipientName, d.Address.Street, d.Address.City, d.Address.Neighborhood,
			d.Address.Apartment, d.Address.DoorCode, d.Address.Lat, d.Address.Lng,
			d.Phone, d.PackageCount, d.Notes, d.HouseholdSize, d.Campaign, d.Status,
			d.AssignedVolunteerID, d.VolunteerCompleted, d.CreatedBy, d.CreatedAt, d.UpdatedAt,
			d.DeliveredBy, d.DeliveredAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("delivery %s: %w", d.ID, models.ErrConflict)
			}
			return fmt.Errorf("insert delivery: %w", err)
		}
		if d.Address.Neighborhood != "" {
			if err := upsertNeighborhoodName(ctx, tx, d.Address.Neighborhood); err != nil {
				return err
			}
		}
		return syncPendingEntry(ctx, tx, d, d.CreatedAt)
	})
}

// GetDelivery reads one delivery.
func (s *Store) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delivery %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery %s: %w", id, err)
	}
	return d, nil
}

// ListDeliveries returns deliveries matching the filter, most recently updated first.
func (s *Store) ListDeliveries(ctx context.Context, f models.DeliveryFilter) ([]models.Delivery, error) {
	// A NULL limit is LIMIT ALL in Postgres.
	var limit any
	switch {
	case f.All:
	case f.Limit > 0:
		limit = f.Limit
	default:
		limit = constants.DEFAULT_LIST_LIMIT
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries
        WHERE ($1 = '' OR status = $1)
          AND ($2 = '' OR neighborhood = $2)
          AND ($3 = '' OR assigned_volunteer_id = $3)
          AND ($4 = '' OR recipient_name ILIKE '%' || $4 || '%'
                       OR street ILIKE '%' || $4 || '%'
                       OR phone ILIKE '%' || $4 || '%'
                       OR notes ILIKE '%' || $4 || '%')
        ORDER BY updated_at DESC
        LIMIT $5`,
		f.Status, f.Neighborhood, f.VolunteerID, f.Search, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return scanDeliveries(rows)
}

// ListActiveForVolunteer returns the volunteer's deliveries not yet marked done.
func (s *Store) ListActiveForVolunteer(ctx context.Context, volunteerID string) ([]models.Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries
        WHERE assigned_volunteer_id = $1 AND volunteer_completed = FALSE
        ORDER BY updated_at DESC`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("list volunteer deliveries: %w", err)
	}
	return scanDeliveries(rows)
}

// ClaimDelivery assigns a delivery to the volunteer only if it is still pending
// and unassigned. Returns false when another claim won or the index entry was stale.
func (s *Store) ClaimDelivery(ctx context.Context, deliveryID, volunteerID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE deliveries
        SET status = $3, assigned_volunteer_id = $2, volunteer_completed = FALSE, updated_at = $4
        WHERE id = $1 AND status = $5 AND assigned_volunteer_id IS NULL`,
		deliveryID, volunteerID, constants.STATUS_ASSIGNED, at, constants.STATUS_PENDING)
	if err != nil {
		return false, fmt.Errorf("claim delivery %s: %w", deliveryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim delivery %s: %w", deliveryID, err)
	}
	return n == 1, nil
}

// ReleaseDelivery returns a delivery to the pending pool.
func (s *Store) ReleaseDelivery(ctx context.Context, deliveryID string, at time.Time) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRowContext(ctx, `
        UPDATE deliveries
        SET status = $2, assigned_volunteer_id = NULL, volunteer_completed = FALSE, updated_at = $3
        WHERE id = $1
        RETURNING `+deliveryColumns,
		deliveryID, constants.STATUS_PENDING, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delivery %s: %w", deliveryID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("release delivery %s: %w", deliveryID, err)
	}
	return d, nil
}

// SetDeliveryStatus changes the status keeping the assignee. Delivered stamps
// delivered_by and delivered_at.
func (s *Store) SetDeliveryStatus(ctx context.Context, deliveryID, status, actorID string, at time.Time) (*models.Delivery, error) {
	var row *sql.Row
	if status == constants.STATUS_DELIVERED {
		row = s.db.QueryRowContext(ctx, `
            UPDATE deliveries
            SET status = $2, updated_at = $3, delivered_by = $4, delivered_at = $3
            WHERE id = $1
            RETURNING `+deliveryColumns,
			deliveryID, status, at, actorID)
	} else {
		row = s.db.QueryRowContext(ctx, `
            UPDATE deliveries
            SET status = $2, updated_at = $3
            WHERE id = $1
            RETURNING `+deliveryColumns,
			deliveryID, status, at)
	}
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delivery %s: %w", deliveryID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set status of delivery %s: %w", deliveryID, err)
	}
	return d, nil
}

// CompleteDelivery hides a delivered delivery from its volunteer's active list.
func (s *Store) CompleteDelivery(ctx context.Context, deliveryID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE deliveries SET volunteer_completed = TRUE, updated_at = $2
        WHERE id = $1`, deliveryID, at)
	if err != nil {
		return fmt.Errorf("complete delivery %s: %w", deliveryID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delivery %s: %w", deliveryID, models.ErrNotFound)
	}
	return nil
}

// UpdateDelivery locks the delivery, lets mutate change it and writes every
// editable column back. The pending index is not touched here.
func (s *Store) UpdateDelivery(ctx context.Context, deliveryID string, mutate func(d *models.Delivery) error) (*models.Delivery, error) {
	var updated *models.Delivery
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		d, err := scanDelivery(tx.QueryRowContext(ctx,
			`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, deliveryID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("delivery %s: %w", deliveryID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock delivery %s: %w", deliveryID, err)
		}
		if err := mutate(d); err != nil {
			return err
		}
		if err := writeDelivery(ctx, tx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func writeDelivery(ctx context.Context, q querier, d *models.Delivery) error {
	_, err := q.ExecContext(ctx, `
        UPDATE deliveries SET
            recipient_name = $2, street = $3, city = $4, neighborhood = $5, apartment = $6,
            door_code = $7, lat = $8, lng = $9, phone = $10, package_count = $11, notes = $12,
            household_size = $13, campaign = $14, status = $15, assigned_volunteer_id = $16,
            volunteer_completed = $17, updated_at = $18, delivered_by = $19, delivered_at = $20
        WHERE id = $1`,
		d.ID, d.RecipientName, d.Address.Street, d.Address.City, d.Address.Neighborhood, d.Address.Apartment,
		d.Address.DoorCode, d.Address.Lat, d.Address.Lng, d.Phone, d.PackageCount, d.Notes,
		d.HouseholdSize, d.Campaign, d.Status, d.AssignedVolunteerID,
		d.VolunteerCompleted, d.UpdatedAt, d.DeliveredBy, d.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", d.ID, err)
	}
	return nil
}

// DeleteDeliveries removes deliveries together with their index entries.
func (s *Store) DeleteDeliveries(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_index WHERE delivery_id = ANY($1)`, pq.Array(ids)); err != nil {
			return fmt.Errorf("delete index entries: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM deliveries WHERE id = ANY($1)`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("delete deliveries: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("deliveries deleted", zap.Int64("count", deleted))
	return int(deleted), nil
}

// StatusCounts groups all deliveries by status.
func (s *Store) StatusCounts(ctx context.Context) (models.StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM deliveries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()
	counts := models.StatusCounts{}
	for _, st := range constants.AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// SetCoordinates stores geocoding results.
func (s *Store) SetCoordinates(ctx context.Context, deliveryID string, lat, lng float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deliveries SET lat = $2, lng = $3, updated_at = $4 WHERE id = $1`,
		deliveryID, lat, lng, at)
	if err != nil {
		return fmt.Errorf("set coordinates of %s: %w", deliveryID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delivery %s: %w", deliveryID, models.ErrNotFound)
	}
	return nil
}
