package integration

import (
	"context"
	"testing"
	"time"

	"shopkart/internal/events"
	"shopkart/internal/model"
	"shopkart/internal/payment"
	"shopkart/internal/repository"
	"shopkart/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServices wires the real repositories and services over the test pool.
func newServices(pool *pgxpool.Pool) (service.CartService, service.CheckoutService) {
	logger := zerolog.Nop()

	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	cartSvc := service.NewCartService(cartRepo, productRepo, events.NopPublisher{}, logger)
	checkoutSvc := service.NewCheckoutService(
		orderRepo,
		cartRepo,
		productRepo,
		payment.NewVerifier("integration-secret", logger),
		payment.NewGateway("http://127.0.0.1:0", logger),
		events.NopPublisher{},
		service.CheckoutConfig{
			ShippingFee:   decimal.RequireFromString("5.00"),
			BuyNowTaxRate: decimal.RequireFromString("0.05"),
			NumberFloor:   100000,
			NumberRetries: 1,
			Currency:      "USD",
		},
		logger,
	)

	return cartSvc, checkoutSvc
}

func checkoutRequest() *model.CheckoutRequest {
	return &model.CheckoutRequest{
		Shipping: model.ShippingInfo{
			Name:       "Jo Bloggs",
			Address:    "1 High St",
			City:       "Springfield",
			PostalCode: "12345",
		},
	}
}

func TestCartTotalsLifecycle(t *testing.T) {
	db := SetupTestDB(t)
	SeedProducts(t, db.Pool)
	cartSvc, _ := newServices(db.Pool)
	ctx := context.Background()

	summary, err := cartSvc.Add(ctx, "user-1", "P001")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalItems)
	assert.Equal(t, "10.00", summary.TotalPrice.StringFixed(2))

	summary, err = cartSvc.Add(ctx, "user-1", "P001")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalItems)
	assert.Equal(t, "20.00", summary.TotalPrice.StringFixed(2))
	require.Len(t, summary.Items, 1, "repeat add increments the line, never duplicates it")

	summary, err = cartSvc.Remove(ctx, "user-1", "P001")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalItems)
	assert.Equal(t, "0.00", summary.TotalPrice.StringFixed(2))

	// and the stored cart agrees
	summary, err = cartSvc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestPriceSnapshotImmutability(t *testing.T) {
	db := SetupTestDB(t)
	SeedProducts(t, db.Pool)
	cartSvc, checkoutSvc := newServices(db.Pool)
	ctx := context.Background()

	_, err := cartSvc.Add(ctx, "user-1", "P001")
	require.NoError(t, err)

	// catalogue price change after the add must not leak into the cart
	_, err = db.Pool.Exec(ctx, "UPDATE products SET price = 99.00 WHERE id = 'P001'")
	require.NoError(t, err)

	summary, err := cartSvc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "10.00", summary.TotalPrice.StringFixed(2))

	resp, err := checkoutSvc.Checkout(ctx, "user-1", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "10.00", resp.Order.Subtotal.StringFixed(2))
	assert.Equal(t, "15.00", resp.Order.Total.StringFixed(2))
}

func TestConsolidateDuplicateCarts(t *testing.T) {
	db := SetupTestDB(t)
	SeedProducts(t, db.Pool)
	cartSvc, _ := newServices(db.Pool)
	ctx := context.Background()

	// Duplicate pending carts predate the unique index; rebuild that legacy
	// state by dropping the index in this container.
	_, err := db.Pool.Exec(ctx, "DROP INDEX idx_carts_one_pending_per_user")
	require.NoError(t, err)

	olderID := uuid.New()
	newerID := uuid.New()
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO carts (id, user_id, status, created_at, updated_at) VALUES ($1, 'user-dup', 'PENDING', $2, $2)`,
		olderID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO carts (id, user_id, status, created_at, updated_at) VALUES ($1, 'user-dup', 'PENDING', NOW(), NOW())`,
		newerID)
	require.NoError(t, err)

	insertItem := `INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4, $5)`
	_, err = db.Pool.Exec(ctx, insertItem, uuid.New(), olderID, "P001", 2, "10.00")
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, insertItem, uuid.New(), newerID, "P001", 3, "10.00")
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, insertItem, uuid.New(), newerID, "P002", 1, "20.00")
	require.NoError(t, err)

	summary, err := cartSvc.Consolidate(ctx, "user-dup")
	require.NoError(t, err)

	assert.Equal(t, olderID, summary.CartID, "the oldest cart is canonical")
	assert.Equal(t, 6, summary.TotalItems)
	assert.Equal(t, "70.00", summary.TotalPrice.StringFixed(2))

	var cartCount int
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM carts WHERE user_id = 'user-dup' AND status = 'PENDING'").Scan(&cartCount))
	assert.Equal(t, 1, cartCount)

	// running it again changes nothing
	again, err := cartSvc.Consolidate(ctx, "user-dup")
	require.NoError(t, err)
	assert.Equal(t, summary.TotalItems, again.TotalItems)
	assert.Equal(t, summary.TotalPrice.StringFixed(2), again.TotalPrice.StringFixed(2))
}

func TestGuestMergeThenCheckout(t *testing.T) {
	db := SetupTestDB(t)
	SeedProducts(t, db.Pool)
	cartSvc, checkoutSvc := newServices(db.Pool)
	ctx := context.Background()

	resp, err := cartSvc.MergeGuestCart(ctx, "user-1", []model.GuestCartItem{
		{ProductID: "P001", Quantity: 2},
		{ProductID: "P002", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 3, resp.Cart.TotalItems)
	assert.Equal(t, "40.00", resp.Cart.TotalPrice.StringFixed(2))

	order, err := checkoutSvc.Checkout(ctx, "user-1", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "40.00", order.Order.Subtotal.StringFixed(2))
	assert.Equal(t, "45.00", order.Order.Total.StringFixed(2))
	assert.Len(t, order.Items, 2)

	// checkout snapshots the cart into the order; the cart itself survives
	summary, err := cartSvc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalItems)
}

func TestSequentialOrderNumbers(t *testing.T) {
	db := SetupTestDB(t)
	SeedProducts(t, db.Pool)
	cartSvc, checkoutSvc := newServices(db.Pool)
	ctx := context.Background()

	_, err := cartSvc.Add(ctx, "user-a", "P001")
	require.NoError(t, err)
	first, err := checkoutSvc.Checkout(ctx, "user-a", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "100000", first.Order.Number)

	_, err = cartSvc.Add(ctx, "user-b", "P002")
	require.NoError(t, err)
	second, err := checkoutSvc.Checkout(ctx, "user-b", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "100001", second.Order.Number)

	// orders are immutable snapshots, readable by number
	got, err := checkoutSvc.GetOrder(ctx, "100000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-a", got.Order.UserID)
}

func TestEmptyCartCheckoutCreatesNothing(t *testing.T) {
	db := SetupTestDB(t)
	SeedProducts(t, db.Pool)
	_, checkoutSvc := newServices(db.Pool)
	ctx := context.Background()

	_, err := checkoutSvc.Checkout(ctx, "user-1", checkoutRequest())
	assert.ErrorIs(t, err, model.ErrEmptyCart)

	var orderCount int
	require.NoError(t, db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&orderCount))
	assert.Equal(t, 0, orderCount)
}

func TestBuyNowBypassesCart(t *testing.T) {
	db := SetupTestDB(t)
	SeedProducts(t, db.Pool)
	cartSvc, checkoutSvc := newServices(db.Pool)
	ctx := context.Background()

	_, err := cartSvc.Add(ctx, "user-1", "P001")
	require.NoError(t, err)

	resp, err := checkoutSvc.BuyNow(ctx, "user-1", &model.BuyNowRequest{
		Items:    []model.BuyNowItem{{ProductID: "P003", Quantity: 1}},
		Shipping: checkoutRequest().Shipping,
	})
	require.NoError(t, err)

	// 30.00 subtotal + 5.00 shipping + 1.50 tax
	assert.Equal(t, "30.00", resp.Order.Subtotal.StringFixed(2))
	assert.Equal(t, "1.50", resp.Order.Tax.StringFixed(2))
	assert.Equal(t, "36.50", resp.Order.Total.StringFixed(2))

	// the stored cart is untouched
	summary, err := cartSvc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalItems)
	assert.Equal(t, "P001", summary.Items[0].ProductID)
}
