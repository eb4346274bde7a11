package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlebot/bundle"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockdb.Close() })
	return New(sqlx.NewDb(mockdb, "sqlmock")), mock
}

func TestLoadEmptyDatabase(t *testing.T) {
	st, mock := mockStore(t)

	mock.ExpectQuery(`SELECT id, buyer_id, buyer_name, buyer_username, package_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT buyer_id FROM offline_queue`).
		WillReturnRows(sqlmock.NewRows([]string{"buyer_id"}))
	mock.ExpectQuery(`SELECT online, offline_notice FROM service_status`).
		WillReturnError(sql.ErrNoRows)

	snap, err := st.Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snap.Orders)
	assert.Empty(t, snap.OfflineQueue)
	assert.True(t, snap.Status.Online)
	assert.Equal(t, bundle.DefaultOfflineNotice, snap.Status.OfflineNotice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot(t *testing.T) {
	st, mock := mockStore(t)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resolved := created.Add(time.Hour)

	mock.ExpectQuery(`SELECT id, buyer_id, buyer_name, buyer_username, package_id`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "buyer_id", "buyer_name", "buyer_username", "package_id",
			"quantity", "total_price", "payment_ref", "status",
			"created_at", "resolved_at", "resolved_by",
		}).
			AddRow("ORD-7-1", int64(7), "Alice", "alice", "3hr",
				2, 160, "QWE123", "approved", created, resolved, int64(100)).
			AddRow("ORD-8-1", int64(8), "Bob", "", "24hr",
				1, 200, "RTY456", "pending", created, nil, int64(0)))
	mock.ExpectQuery(`SELECT buyer_id FROM offline_queue`).
		WillReturnRows(sqlmock.NewRows([]string{"buyer_id"}).AddRow(int64(7)).AddRow(int64(9)))
	mock.ExpectQuery(`SELECT online, offline_notice FROM service_status`).
		WillReturnRows(sqlmock.NewRows([]string{"online", "offline_notice"}).
			AddRow(false, "Back at noon."))

	snap, err := st.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Orders, 2)
	approved := snap.Orders["ORD-7-1"]
	assert.Equal(t, bundle.OrderApproved, approved.Status)
	assert.Equal(t, int64(100), approved.ResolvedBy)
	require.NotNil(t, approved.ResolvedAt)
	assert.Equal(t, resolved, approved.ResolvedAt.UTC())

	pending := snap.Orders["ORD-8-1"]
	assert.Equal(t, bundle.OrderPending, pending.Status)
	assert.Nil(t, pending.ResolvedAt)

	assert.Equal(t, []int64{7, 9}, snap.OfflineQueue)
	assert.False(t, snap.Status.Online)
	assert.Equal(t, "Back at noon.", snap.Status.OfflineNotice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRewritesSnapshotInOneTransaction(t *testing.T) {
	st, mock := mockStore(t)

	snap := bundle.EmptySnapshot()
	snap.Orders["ORD-7-1"] = bundle.Order{
		ID:         "ORD-7-1",
		BuyerID:    7,
		BuyerName:  "Alice",
		PackageID:  "3hr",
		Quantity:   2,
		TotalPrice: 160,
		PaymentRef: "QWE123",
		Status:     bundle.OrderPending,
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	snap.OfflineQueue = []int64{9}
	snap.Status.Online = false

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM orders`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`DELETE FROM offline_queue`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO offline_queue`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO service_status`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, st.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnFailure(t *testing.T) {
	st, mock := mockStore(t)

	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM orders`).WillReturnError(boom)
	mock.ExpectRollback()

	err := st.Save(context.Background(), bundle.EmptySnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
