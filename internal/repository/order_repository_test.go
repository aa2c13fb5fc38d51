package repository

import (
	"context"
	"testing"
	"time"

	"shopkart/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfirmedOrder(number, userID string) *model.Order {
	return &model.Order{
		ID:            uuid.New(),
		Number:        number,
		UserID:        userID,
		Status:        model.OrderStatusConfirmed,
		PaymentStatus: model.PaymentStatusPending,
		Shipping: model.ShippingInfo{
			Name:       "Jo Bloggs",
			Address:    "1 High St",
			City:       "Springfield",
			PostalCode: "12345",
		},
		Subtotal:    decimal.RequireFromString("20.00"),
		ShippingFee: decimal.RequireFromString("5.00"),
		Tax:         decimal.Zero,
		Total:       decimal.RequireFromString("25.00"),
		CreatedAt:   time.Now(),
	}
}

func TestOrderRepository_LatestNumber(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	t.Run("empty table yields empty string", func(t *testing.T) {
		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		latest, err := repo.LatestNumber(ctx, tx)

		require.NoError(t, err)
		assert.Empty(t, latest)
	})

	t.Run("returns the most recently created number", func(t *testing.T) {
		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)

		first := newConfirmedOrder("100000", "user-1")
		first.CreatedAt = time.Now().Add(-time.Minute)
		second := newConfirmedOrder("100001", "user-1")

		require.NoError(t, repo.CreateOrder(ctx, tx, first))
		require.NoError(t, repo.CreateOrder(ctx, tx, second))
		require.NoError(t, tx.Commit(ctx))

		tx2, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		defer tx2.Rollback(ctx)

		latest, err := repo.LatestNumber(ctx, tx2)

		require.NoError(t, err)
		assert.Equal(t, "100001", latest)
	})
}

func TestOrderRepository_CreateOrder_NumberConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, newConfirmedOrder("100042", "user-1")))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx)

	err = repo.CreateOrder(ctx, tx2, newConfirmedOrder("100042", "user-2"))

	assert.ErrorIs(t, err, model.ErrOrderConflict)
}

func TestOrderRepository_GetByNumber(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	order := newConfirmedOrder("100050", "user-1")
	items := []model.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: "P001", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")},
		{ID: uuid.New(), OrderID: order.ID, ProductID: "P002", Quantity: 1, UnitPrice: decimal.RequireFromString("2.75")},
	}

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, repo.CreateOrderItems(ctx, tx, items))
	require.NoError(t, tx.Commit(ctx))

	t.Run("round-trips the order and its items", func(t *testing.T) {
		got, gotItems, err := repo.GetByNumber(ctx, "100050")

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, order.ID, got.ID)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, "Springfield", got.Shipping.City)
		assert.True(t, got.Total.Equal(decimal.RequireFromString("25.00")))
		assert.Len(t, gotItems, 2)
	})

	t.Run("unknown number returns nil without error", func(t *testing.T) {
		got, gotItems, err := repo.GetByNumber(ctx, "999999")

		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Nil(t, gotItems)
	})
}
