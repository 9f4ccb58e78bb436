package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/storefront-hq/backoffice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []string{"id", "user_id", "status", "created_at"}

var joinedColumns = []string{"id", "user_id", "status", "created_at", "id", "name", "quantity", "price"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func TestOrderRepositoryCreateSnapshotsPricesInTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (user_id, status)")).
		WithArgs(userID.String(), "pending").
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(10, userID.String(), "pending", now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_products")).
		WithArgs(10, 1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price"}).AddRow(1, "Mug", 2, "9.50"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_products")).
		WithArgs(10, 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price"}).AddRow(2, "Tea", 1, "4.00"))
	mock.ExpectCommit()

	order, err := repo.Create(context.Background(), userID, []types.OrderItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, order.ID)
	assert.Equal(t, types.OrderStatusPending, order.Status)
	assert.True(t, order.UserID.Valid)
	assert.Equal(t, userID, order.UserID.UUID)
	require.Len(t, order.Products, 2)
	assert.True(t, decimal.RequireFromString("9.50").Equal(order.Products[0].Price))
	assert.True(t, decimal.RequireFromString("23.00").Equal(order.Total()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateRollsBackOnUnknownProduct(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (user_id, status)")).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(11, userID.String(), "pending", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_products")).
		WithArgs(11, 1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price"}).AddRow(1, "Mug", 1, "9.50"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_products")).
		WithArgs(11, 99, 1).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "price"}))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), userID, []types.OrderItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (user_id, status)")).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(12, uuid.NewString(), "pending", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_products")).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), uuid.New(), []types.OrderItem{{ProductID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateDeletedUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (user_id, status)")).
		WithArgs(userID.String(), "pending").
		WillReturnError(&pq.Error{Code: "23503", Message: `insert or update on table "orders" violates foreign key constraint`})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), userID, []types.OrderItem{{ProductID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryListAllWithProductsGroupsRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	newer := time.Now()
	older := newer.Add(-time.Hour)
	owner := uuid.NewString()

	rows := sqlmock.NewRows(joinedColumns).
		AddRow(2, owner, "pending", newer, 1, "Mug", 1, "9.50").
		AddRow(2, owner, "pending", newer, 3, "Pot", 2, "20.00").
		AddRow(1, nil, "completed", older, 1, "Mug", 4, "8.00").
		AddRow(3, owner, "canceled", older.Add(-time.Hour), nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN order_products")).WillReturnRows(rows)

	orders, err := repo.ListAllWithProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, 2, orders[0].ID)
	require.Len(t, orders[0].Products, 2)
	assert.Equal(t, "Pot", orders[0].Products[1].Name)
	assert.True(t, decimal.RequireFromString("49.50").Equal(orders[0].Total()))

	assert.Equal(t, 1, orders[1].ID)
	assert.False(t, orders[1].UserID.Valid)
	require.Len(t, orders[1].Products, 1)
	assert.Equal(t, 4, orders[1].Products[0].Quantity)

	assert.Equal(t, 3, orders[2].ID)
	assert.NotNil(t, orders[2].Products)
	assert.Empty(t, orders[2].Products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryGetWithProductsNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE o.id = $1")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(joinedColumns))

	_, err := repo.GetWithProducts(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	t.Run("applies allowed transition", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewOrderRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(5, uuid.NewString(), "pending", time.Now()))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = $2")).
			WithArgs("completed", 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		var seen types.OrderStatus
		order, err := repo.UpdateStatus(context.Background(), 5, types.OrderStatusCompleted, func(current types.OrderStatus) error {
			seen = current
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, types.OrderStatusPending, seen)
		assert.Equal(t, types.OrderStatusCompleted, order.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check error rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewOrderRepository(db)
		rejected := errors.New("rejected")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs(6).
			WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(6, uuid.NewString(), "completed", time.Now()))
		mock.ExpectRollback()

		_, err := repo.UpdateStatus(context.Background(), 6, types.OrderStatusPending, func(types.OrderStatus) error {
			return rejected
		})
		assert.ErrorIs(t, err, rejected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewOrderRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows(orderColumns))
		mock.ExpectRollback()

		_, err := repo.UpdateStatus(context.Background(), 7, types.OrderStatusCanceled, nil)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepositoryStatistics(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE created_at::date = NOW()::date")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("AND status <> 'completed'")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("date_trunc('month', created_at)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))
	mock.ExpectQuery(regexp.QuoteMeta("SUM(op.price * op.quantity)")).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("1234.56"))

	today, err := repo.TodayCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, today)

	pending, err := repo.TodayPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	month, err := repo.MonthCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 17, month)

	revenue, err := repo.YearRevenue(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(revenue))
	assert.NoError(t, mock.ExpectationsWereMet())
}
