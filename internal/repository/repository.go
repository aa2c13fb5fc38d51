package repository

import (
	"context"

	"shopkart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for catalogue lookups. The
// catalogue itself is managed elsewhere; this surface only reads it.
type ProductRepository interface {
	// GetAll retrieves all products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// CartRepository defines data access for pending carts and their line
// items. Write methods run within a caller-provided transaction so that a
// whole mutation operation commits or rolls back as one unit.
type CartRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// FindPending loads the user's pending cart and items outside any
	// transaction. Returns (nil, nil, nil) when no pending cart exists.
	FindPending(ctx context.Context, userID string) (*model.Cart, []model.CartItem, error)

	// FindPendingTx is FindPending within a transaction, locking the cart
	// row FOR UPDATE so concurrent mutations on the same cart serialise.
	FindPendingTx(ctx context.Context, tx pgx.Tx, userID string) (*model.Cart, []model.CartItem, error)

	// FindAllPendingTx loads every pending cart for the user, oldest first,
	// with their items. Used by consolidation.
	FindAllPendingTx(ctx context.Context, tx pgx.Tx, userID string) ([]model.Cart, map[uuid.UUID][]model.CartItem, error)

	// CreatePending inserts a fresh empty pending cart. A losing race
	// against the partial unique index returns ErrDuplicatePendingCart.
	CreatePending(ctx context.Context, tx pgx.Tx, cart *model.Cart) error

	// InsertItem inserts a new line item.
	InsertItem(ctx context.Context, tx pgx.Tx, item *model.CartItem) error

	// UpdateItemQuantity sets an existing line item's quantity.
	UpdateItemQuantity(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, quantity int) error

	// MoveItem reassigns a line item to another cart.
	MoveItem(ctx context.Context, tx pgx.Tx, itemID, cartID uuid.UUID) error

	// DeleteItem removes a line item entirely.
	DeleteItem(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error

	// DeleteCart removes a cart; its items go with it.
	DeleteCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error

	// TouchCart bumps the cart's updated_at.
	TouchCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error
}

// OrderRepository defines data access for confirmed orders.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// LatestNumber returns the most recently created order's number, or ""
	// when no order exists yet.
	LatestNumber(ctx context.Context, tx pgx.Tx) (string, error)

	// CreateOrder inserts a confirmed order. A duplicate order number is
	// surfaced as model.ErrOrderConflict.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts the order's line snapshots.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByNumber retrieves an order and its items by order number.
	// Returns (nil, nil, nil) when absent.
	GetByNumber(ctx context.Context, number string) (*model.Order, []model.OrderItem, error)
}
