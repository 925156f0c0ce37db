package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chesed/internal/constants"
	"chesed/internal/models"
)

const editRequestColumns = `id, delivery_id, changes, status, created_by, created_at, reviewed_by, reviewed_at, admin_note`

func scanEditRequest(row rowScanner) (*models.EditRequest, error) {
	var r models.EditRequest
	var changes []byte
	if err := row.Scan(&r.ID, &r.DeliveryID, &changes, &r.Status, &r.CreatedBy, &r.CreatedAt,
		&r.ReviewedBy, &r.ReviewedAt, &r.AdminNote); err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &r.Changes); err != nil {
			return nil, fmt.Errorf("decode changes of request %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// CreateEditRequest stores a new proposal.
func (s *Store) CreateEditRequest(ctx context.Context, r *models.EditRequest) error {
	changes, err := json.Marshal(r.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO edit_requests (`+editRequestColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.DeliveryID, changes, r.Status, r.CreatedBy, r.CreatedAt, r.ReviewedBy, r.ReviewedAt, r.AdminNote)
	if err != nil {
		return fmt.Errorf("create edit request: %w", err)
	}
	return nil
}

// GetEditRequest reads one request.
func (s *Store) GetEditRequest(ctx context.Context, id string) (*models.EditRequest, error) {
	r, err := scanEditRequest(s.db.QueryRowContext(ctx, `SELECT `+editRequestColumns+` FROM edit_requests WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "edit request "+id)
	}
	return r, nil
}

// ListEditRequests returns requests with the given status, newest first. Empty status lists all.
func (s *Store) ListEditRequests(ctx context.Context, status string) ([]models.EditRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+editRequestColumns+`
        FROM edit_requests
        WHERE ($1 = '' OR status = $1)
        ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("list edit requests: %w", err)
	}
	defer rows.Close()
	var out []models.EditRequest
	for rows.Next() {
		r, err := scanEditRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ApproveEditRequest applies the request to its delivery and marks it approved,
// all inside one transaction. Either everything is written or nothing is.
func (s *Store) ApproveEditRequest(ctx context.Context, id, reviewerID string, at time.Time) (*models.Delivery, error) {
	var merged *models.Delivery
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := scanEditRequest(tx.QueryRowContext(ctx,
			`SELECT `+editRequestColumns+` FROM edit_requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFoundOr(err, "edit request "+id)
		}
		if r.Status != constants.EDIT_REQUEST_STATUS_PENDING {
			return fmt.Errorf("edit request %s is %s: %w", id, r.Status, models.ErrConflict)
		}

		d, err := scanDelivery(tx.QueryRowContext(ctx,
			`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, r.DeliveryID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("delivery %s: %w", r.DeliveryID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock delivery %s: %w", r.DeliveryID, err)
		}

		r.Changes.ApplyTo(d)
		d.UpdatedAt = at
		if err := writeDelivery(ctx, tx, d); err != nil {
			return err
		}
		if d.Address.Neighborhood != "" {
			if err := upsertNeighborhoodName(ctx, tx, d.Address.Neighborhood); err != nil {
				return err
			}
		}
		if err := syncPendingEntry(ctx, tx, d, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
            UPDATE edit_requests SET status = $2, reviewed_by = $3, reviewed_at = $4
            WHERE id = $1`, id, constants.EDIT_REQUEST_STATUS_APPROVED, reviewerID, at); err != nil {
			return fmt.Errorf("mark request %s approved: %w", id, err)
		}
		merged = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// RejectEditRequest marks a pending request rejected without touching the delivery.
func (s *Store) RejectEditRequest(ctx context.Context, id, reviewerID, note string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE edit_requests SET status = $2, reviewed_by = $3, reviewed_at = $4, admin_note = $5
        WHERE id = $1 AND status = $6`,
		id, constants.EDIT_REQUEST_STATUS_REJECTED, reviewerID, at, note, constants.EDIT_REQUEST_STATUS_PENDING)
	if err != nil {
		return fmt.Errorf("reject edit request %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.GetEditRequest(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("edit request %s already reviewed: %w", id, models.ErrConflict)
}
