package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chesed/internal/constants"
	"chesed/internal/models"
)

var editRequestColumnNames = []string{
	"id", "delivery_id", "changes", "status", "created_by", "created_at", "reviewed_by", "reviewed_at", "admin_note",
}

func editRequestRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows(editRequestColumnNames).AddRow(
		"er1", "d1", []byte(`{"phone":"052-0000000","address":{"neighborhood":"South"}}`), status,
		"vol-a", time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC), nil, nil, "",
	)
}

func TestApproveEditRequest_MergesAndCommits(t *testing.T) {
	conn, mock, store := setupMockDB(t)
	defer conn.Close()

	at := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM edit_requests WHERE id = \$1 FOR UPDATE`).
		WithArgs("er1").
		WillReturnRows(editRequestRows(constants.EDIT_REQUEST_STATUS_PENDING))
	mock.ExpectQuery(`SELECT .* FROM deliveries WHERE id = \$1 FOR UPDATE`).
		WithArgs("d1").
		WillReturnRows(deliveryRows(constants.STATUS_PENDING, nil))
	mock.ExpectExec(`UPDATE deliveries SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO neighborhoods`).
		WithArgs("south", "South").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO pending_index`).
		WithArgs("d1", "South", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE edit_requests SET status = \$2, reviewed_by = \$3, reviewed_at = \$4`).
		WithArgs("er1", constants.EDIT_REQUEST_STATUS_APPROVED, "admin-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := store.ApproveEditRequest(context.Background(), "er1", "admin-1", at)
	require.NoError(t, err)
	assert.Equal(t, "052-0000000", d.Phone)
	assert.Equal(t, "South", d.Address.Neighborhood)
	assert.Equal(t, "הרצל 5", d.Address.Street)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveEditRequest_FailureIsAllOrNothing(t *testing.T) {
	conn, mock, store := setupMockDB(t)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM edit_requests WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(editRequestRows(constants.EDIT_REQUEST_STATUS_PENDING))
	mock.ExpectQuery(`SELECT .* FROM deliveries WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(deliveryRows(constants.STATUS_ASSIGNED, "vol-a"))
	mock.ExpectExec(`UPDATE deliveries SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO neighborhoods`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM pending_index`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE edit_requests SET status`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.ApproveEditRequest(context.Background(), "er1", "admin-1", time.Now())
	require.Error(t, err)
	// No commit was issued: the delivery write and the request write are discarded together.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveEditRequest_AlreadyReviewed(t *testing.T) {
	conn, mock, store := setupMockDB(t)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM edit_requests WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(editRequestRows(constants.EDIT_REQUEST_STATUS_REJECTED))
	mock.ExpectRollback()

	_, err := store.ApproveEditRequest(context.Background(), "er1", "admin-1", time.Now())
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveEditRequest_DeliveryGone(t *testing.T) {
	conn, mock, store := setupMockDB(t)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM edit_requests WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(editRequestRows(constants.EDIT_REQUEST_STATUS_PENDING))
	mock.ExpectQuery(`SELECT .* FROM deliveries WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(deliveryColumnNames))
	mock.ExpectRollback()

	_, err := store.ApproveEditRequest(context.Background(), "er1", "admin-1", time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectEditRequest_AlreadyReviewed(t *testing.T) {
	conn, mock, store := setupMockDB(t)
	defer conn.Close()

	mock.ExpectExec(`UPDATE edit_requests SET status = \$2`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM edit_requests WHERE id = \$1`).
		WithArgs("er1").
		WillReturnRows(editRequestRows(constants.EDIT_REQUEST_STATUS_APPROVED))

	err := store.RejectEditRequest(context.Background(), "er1", "admin-1", "duplicate", time.Now())
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectEditRequest_Missing(t *testing.T) {
	conn, mock, store := setupMockDB(t)
	defer conn.Close()

	mock.ExpectExec(`UPDATE edit_requests SET status = \$2`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM edit_requests WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(editRequestColumnNames))

	err := store.RejectEditRequest(context.Background(), "er1", "admin-1", "", time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
