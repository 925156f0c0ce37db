package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chesed/internal/constants"
	"chesed/internal/models"
)

// PendingForNeighborhood returns up to limit index entries for the neighborhood, oldest first.
func (s *Store) PendingForNeighborhood(ctx context.Context, neighborhood string, limit int) ([]models.PendingIndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT delivery_id, neighborhood, created_at
        FROM pending_index
        WHERE neighborhood = $1
        ORDER BY created_at, delivery_id
        LIMIT $2`, neighborhood, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending index: %w", err)
	}
	defer rows.Close()

	var entries []models.PendingIndexEntry
	for rows.Next() {
		var e models.PendingIndexEntry
		if err := rows.Scan(&e.DeliveryID, &e.Neighborhood, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertPendingEntry creates or refreshes the index entry for a delivery.
func (s *Store) UpsertPendingEntry(ctx context.Context, e models.PendingIndexEntry) error {
	return upsertPendingEntry(ctx, s.db, e)
}

func upsertPendingEntry(ctx context.Context, q querier, e models.PendingIndexEntry) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO pending_index (delivery_id, neighborhood, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (delivery_id) DO UPDATE SET neighborhood = EXCLUDED.neighborhood`,
		e.DeliveryID, e.Neighborhood, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert pending entry %s: %w", e.DeliveryID, err)
	}
	return nil
}

// DeletePendingEntry removes the index entry. A missing entry is not an error.
func (s *Store) DeletePendingEntry(ctx context.Context, deliveryID string) error {
	return deletePendingEntry(ctx, s.db, deliveryID)
}

func deletePendingEntry(ctx context.Context, q querier, deliveryID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM pending_index WHERE delivery_id = $1`, deliveryID); err != nil {
		return fmt.Errorf("delete pending entry %s: %w", deliveryID, err)
	}
	return nil
}

// syncPendingEntry makes the index agree with the delivery's current state.
func syncPendingEntry(ctx context.Context, q querier, d *models.Delivery, at time.Time) error {
	if d.IsPendingUnassigned() {
		return upsertPendingEntry(ctx, q, models.PendingIndexEntry{
			DeliveryID:   d.ID,
			Neighborhood: d.Address.Neighborhood,
			CreatedAt:    at,
		})
	}
	return deletePendingEntry(ctx, q, d.ID)
}

// RebuildPendingIndex recomputes the whole index from deliveries in one transaction.
func (s *Store) RebuildPendingIndex(ctx context.Context, at time.Time) (int, error) {
	var written int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_index`); err != nil {
			return fmt.Errorf("clear pending index: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
            INSERT INTO pending_index (delivery_id, neighborhood, created_at)
            SELECT id, neighborhood, $1
            FROM deliveries
            WHERE status = $2 AND assigned_volunteer_id IS NULL`,
			at, constants.STATUS_PENDING)
		if err != nil {
			return fmt.Errorf("fill pending index: %w", err)
		}
		written, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("pending index rebuilt", zap.Int64("entries", written))
	return int(written), nil
}

// PendingCounts maps neighborhood name to its number of index entries.
func (s *Store) PendingCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT neighborhood, COUNT(*) FROM pending_index GROUP BY neighborhood`)
	if err != nil {
		return nil, fmt.Errorf("pending counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan pending count: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}
